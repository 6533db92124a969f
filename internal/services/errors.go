// Package services holds the application logic behind the HTTP API. This
// file centralizes service-level error values so they are returned
// consistently and can be checked by handlers.
package services

import "errors"

// ErrNotConfigured is returned when a FlightService is missing one of its
// collaborators.
var ErrNotConfigured = errors.New("flight service is not fully configured")
