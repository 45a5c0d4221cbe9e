package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Role grants access to the operator API.
type Role string

const (
	// RoleViewer may read sync status, queue stats and failed jobs.
	RoleViewer Role = "viewer"
	// RoleAdmin may additionally trigger sync cycles and imports.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleAdmin
}

// RequireRole ensures the principal holds one of the allowed roles. An admin
// passes every check.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.Role == RoleAdmin {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
