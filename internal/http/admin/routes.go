package admin

import "github.com/labstack/echo/v4"

func RegisterRoutes(g *echo.Group, h *Handler) {

	// Licenses (read-only)
	g.GET("/licenses/:key", h.GetLicense)
	g.GET("/stats", h.GetStats)

	// Backup
	g.POST("/backup", h.BackupDatabase)
}
