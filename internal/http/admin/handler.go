package admin

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"winsbygroup.com/licverify/internal/activation"
	"winsbygroup.com/licverify/internal/backup"
	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/metrics"
)

// keepBackups is how many dump files survive a backup request.
const keepBackups = 10

type Handler struct {
	store  license.Store
	backup *backup.Service // nil unless the store is SQLite
}

func NewHandler(store license.Store, b *backup.Service) *Handler {
	return &Handler{store: store, backup: b}
}

// GET /api/admin/licenses/:key
func (h *Handler) GetLicense(c echo.Context) error {
	lic, err := h.store.FindByKey(c.Request().Context(), c.Param("key"))
	if err != nil {
		return fmt.Errorf("%w: %w", activation.ErrStorageUnavailable, err)
	}
	if lic == nil {
		return echo.NewHTTPError(http.StatusNotFound, "license not found")
	}
	return c.JSON(http.StatusOK, lic)
}

// GET /api/admin/stats
func (h *Handler) GetStats(c echo.Context) error {
	s, err := h.store.Stats(c.Request().Context())
	if err != nil {
		return fmt.Errorf("%w: %w", activation.ErrStorageUnavailable, err)
	}
	metrics.SetLicenseCounts(s.Total, s.Active, s.Bound)
	return c.JSON(http.StatusOK, s)
}

// POST /api/admin/backup
func (h *Handler) BackupDatabase(c echo.Context) error {
	if h.backup == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "backup is only available for the sqlite store")
	}
	result, err := h.backup.CreateBackup(c.Request().Context())
	if err != nil {
		return err
	}
	if _, err := h.backup.Prune(keepBackups); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
