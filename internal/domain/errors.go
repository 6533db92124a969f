package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Query validation errors. All of them wrap ErrInvalidQuery so callers can
// branch on the family with errors.Is.
var (
	ErrInvalidQuery = errors.New("invalid route query")

	ErrInvalidAirportCode    = fmt.Errorf("%w: airport codes must be three letters", ErrInvalidQuery)
	ErrInvalidDate           = fmt.Errorf("%w: dates must use YYYY-MM-DD", ErrInvalidQuery)
	ErrReturnBeforeDeparture = fmt.Errorf("%w: return date is before departure date", ErrInvalidQuery)
)

// FetchError reports that the search page could not be retrieved and no
// cached fallback was available. StatusCode mirrors the upstream status when
// one was received; transport failures use 502 and timeouts 504.
type FetchError struct {
	StatusCode int
	Err        error
}

// NewFetchError builds a FetchError, defaulting the status to 502.
func NewFetchError(status int, err error) *FetchError {
	if status <= 0 {
		status = http.StatusBadGateway
	}
	return &FetchError{StatusCode: status, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch failed: upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("fetch failed: upstream status %d: %v", e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
