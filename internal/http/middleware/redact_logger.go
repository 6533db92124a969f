// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the API. It
// writes one structured line per request and attaches a request-scoped
// logger for handlers. Secrets never reach the logs: credential headers and
// credential-looking query parameters are masked, and e-mail addresses are
// scrubbed from whatever is left.
//
// Bodies are never logged.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	redacted = "[REDACTED]"
	// maxQueryLogLength caps the logged query string.
	maxQueryLogLength = 1024
)

var emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders and MaskParams extend the built-in lists of header and query
// parameter names whose values are replaced entirely. Matching is
// case-insensitive. LogHeaders adds the (scrubbed) request headers to each
// line; it is off by default to keep lines short.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
	LogHeaders  bool
}

func lowerSet(builtin, extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(builtin)+len(extra))
	for _, s := range append(builtin, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// RedactingLogger returns the access-log middleware. Lines are emitted on base
// at info, warn for 4xx and error for 5xx or when handlers attached errors.
// Each line carries the request ID, route, query, status, size, latency and,
// when the handler set it, the X-Flights-Source header.
func RedactingLogger(base zerolog.Logger, opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"authorization", "cookie", "set-cookie", "x-api-key"}, opts.MaskHeaders)
	maskParams := lowerSet([]string{"api_key", "apikey", "key", "token", "access_token"}, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := base.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		query := truncate(redactQuery(c.Request.URL.RawQuery, maskParams), maxQueryLogLength)
		var headers map[string]string
		if opts.LogHeaders {
			headers = redactHeaders(c.Request.Header, maskHeaders)
		}

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		if src := c.Writer.Header().Get(HeaderFlightsSource); src != "" {
			ev = ev.Str("source", src)
		}
		if headers != nil {
			ev = ev.Interface("headers", headers)
		}
		ev.
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}

// redactQuery masks listed parameters and scrubs e-mail addresses from the
// rest. Unparseable queries are scrubbed as plain text.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return emailRE.ReplaceAllString(raw, "[REDACTED:email]")
	}
	for k, vv := range vals {
		if _, ok := mask[strings.ToLower(k)]; ok {
			vals[k] = []string{redacted}
			continue
		}
		for i, v := range vv {
			vv[i] = emailRE.ReplaceAllString(v, "[REDACTED:email]")
		}
	}
	return vals.Encode()
}

func redactHeaders(h map[string][]string, mask map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := mask[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = emailRE.ReplaceAllString(strings.Join(vv, ", "), "[REDACTED:email]")
	}
	return out
}
