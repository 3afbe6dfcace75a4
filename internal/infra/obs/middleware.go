package obs

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

type requestIDKey struct{}

// Middleware carries the gin handlers that tag, log and guard each request.
// A nil Logger disables logging, not the handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequestID propagates the caller's X-Request-ID or mints one.
func (m Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, id))
		c.Header(RequestIDHeader, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// Recover turns a handler panic into a 500 and logs it with the request id.
func (m Middleware) Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if m.Logger != nil {
				m.Logger.ErrorContext(c.Request.Context(), "handler panic",
					"panic", rec,
					"path", c.FullPath(),
					"request_id", c.GetString("request_id"),
				)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}()
		c.Next()
	}
}

// AccessLog writes one line per request at a level chosen by status.
func (m Middleware) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		if m.Logger == nil {
			return
		}
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(started)),
			slog.String("request_id", c.GetString("request_id")),
		}
		if actor := c.GetString("actor_id"); actor != "" {
			attrs = append(attrs, slog.String("actor_id", actor))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}
		m.Logger.LogAttrs(c.Request.Context(), statusLevel(status), "http request", attrs...)
	}
}

func statusLevel(status int) slog.Level {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return slog.LevelWarn
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
