package handlers

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// StatusResponse reports the cache configuration and the most recent fresh
// write. The last_write_* fields are null until something has been fetched.
type StatusResponse struct {
	CacheBackend    string     `json:"cache_backend" example:"memory"`
	CacheTTLSeconds int64      `json:"cache_ttl_seconds" example:"600"`
	LastWriteAt     *time.Time `json:"last_write_at" example:"2025-02-20T10:15:00Z"`
	LastWriteAgo    *string    `json:"last_write_ago" example:"3 minutes ago"`
	LastWriteKey    *string    `json:"last_write_key" example:"9f2c0d6e4b1a..."`
}

// Status godoc
// @ID          getStatus
// @Summary     Cache status
// @Description Reports the cache backend, the fresh-entry TTL and when the cache was last written.
// @Tags        Status
// @Produce     json
// @Success     200  {object}  handlers.StatusResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Cache unreadable"
// @Router      /status [get]
func (h *Handlers) Status(c *gin.Context) {
	mark, found, err := h.flights.LastWriteTimestamp(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cache status unavailable")
		return
	}

	resp := StatusResponse{
		CacheBackend:    h.cacheBackend,
		CacheTTLSeconds: int64(h.flights.ConfiguredTTL() / time.Second),
	}
	if found {
		at := mark.At.UTC()
		ago := humanize.RelTime(at, h.now(), "ago", "from now")
		key := mark.Key
		resp.LastWriteAt, resp.LastWriteAgo, resp.LastWriteKey = &at, &ago, &key
	}
	ok(c, http.StatusOK, resp)
}
