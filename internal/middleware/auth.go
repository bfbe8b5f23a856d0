package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIKeyHeader carries the admin key on admin endpoints.
const APIKeyHeader = "X-API-Key"

// AdminAPIKeyAuth validates the X-API-Key header against adminKey.
// Used for ADMIN API endpoints. Returns 401 if authentication fails,
// including when no admin key is configured.
func AdminAPIKeyAuth(adminKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if adminKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "admin API key not configured")
			}

			key := c.Request().Header.Get(APIKeyHeader)
			if key == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing admin API key")
			}

			if !ValidateAdminKey(adminKey, key) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin API key")
			}

			return next(c)
		}
	}
}

// ValidateAdminKey checks if the provided key matches adminKey
// using constant-time comparison to prevent timing attacks.
func ValidateAdminKey(adminKey, key string) bool {
	if adminKey == "" {
		return false
	}
	return constantEqual(adminKey, key)
}

// constantEqual provides constant-time string equality to avoid timing attacks.
func constantEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
