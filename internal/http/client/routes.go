package client

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all client-facing endpoints under the given Echo group.
func RegisterRoutes(g *echo.Group, h *Handler) {

	// Verification (public, the license key is the credential)
	g.POST("/verify_license", h.Verify)
	g.POST("/v1/verify", h.Verify)

	// Path used by clients built against the original PHP endpoint
	g.POST("/verify_license.php", h.Verify)
}
