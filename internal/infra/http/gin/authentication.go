package ginserver

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staykeeper/internal/infra/security"
)

const (
	principalKey = "staykeeper.principal"
	actorKey     = "actor_id"
)

// RolePlatform marks calls made by the payment collaborator and operators.
const RolePlatform = "platform"

// principal is the caller behind a verified token. Guest or host standing is
// decided per booking by the engine, not by token roles.
type principal struct {
	ID    string
	Roles []string
}

func (p principal) has(role string) bool {
	return slices.ContainsFunc(p.Roles, func(r string) bool {
		return strings.EqualFold(strings.TrimSpace(r), role)
	})
}

type TokenVerifier interface {
	Verify(raw string) (*security.Claims, error)
}

// AuthMiddleware attaches the principal of a valid bearer token. A missing
// or rejected token leaves the request anonymous.
type AuthMiddleware struct {
	Tokens TokenVerifier
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	if raw := extractBearerToken(c.GetHeader("Authorization")); raw != "" && m.Tokens != nil {
		claims, err := m.Tokens.Verify(raw)
		switch {
		case err != nil && m.Logger != nil:
			m.Logger.Debug("bearer token rejected", "error", err, "path", c.FullPath())
		case err == nil:
			c.Set(principalKey, principal{ID: claims.Subject, Roles: claims.Roles})
			c.Set(actorKey, claims.Subject)
		}
	}
	c.Next()
}

// authenticated returns the caller or writes 401.
func authenticated(c *gin.Context) (principal, bool) {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(principal); ok && p.ID != "" {
			return p, true
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	return principal{}, false
}

// requireRole is authenticated plus a role check that writes 403.
func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := authenticated(c)
	if !ok {
		return principal{}, false
	}
	if !p.has(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
