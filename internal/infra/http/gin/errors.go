package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/infra/obs"
)

var errBusUnavailable = errs.Unavailable("http: application bus unavailable")

// statusFor maps an error kind onto the HTTP status returned to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		requestID := obs.RequestIDFromContext(c.Request.Context())
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "error", err, "request_id", requestID)
		}
		c.JSON(status, gin.H{"error": "internal error", "request_id": requestID})
		return
	}
	body := gin.H{"error": err.Error()}
	if kind := errs.KindOf(err); kind != nil {
		body["kind"] = kind.Error()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": errs.ErrValidation.Error()})
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 instant.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseDates(c *gin.Context, fromKey, toKey string, from, to *time.Time) bool {
	var err error
	if *from, err = parseDate(c.Query(fromKey)); err != nil {
		badRequest(c, "invalid "+fromKey)
		return false
	}
	if *to, err = parseDate(c.Query(toKey)); err != nil {
		badRequest(c, "invalid "+toKey)
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return n, true
}
