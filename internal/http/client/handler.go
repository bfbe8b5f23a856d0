package client

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"winsbygroup.com/licverify/internal/activation"
	"winsbygroup.com/licverify/internal/http/api"
)

type Handler struct {
	ActivationService *activation.Service
}

func NewHandler(a *activation.Service) *Handler {
	return &Handler{ActivationService: a}
}

// POST /api/verify_license
func (h *Handler) Verify(c echo.Context) error {
	// legacy clients post JSON without a content type
	req := c.Request()
	if req.Header.Get(echo.HeaderContentType) == "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	var in activation.Request
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, &activation.Result{Message: api.MsgInvalidBody})
	}
	if err := c.Validate(&in); err != nil {
		return c.JSON(http.StatusBadRequest, &activation.Result{Message: api.MsgIncompleteRequest})
	}

	res, err := h.ActivationService.Verify(req.Context(), in.LicenseKey, in.HWID)
	if errors.Is(err, activation.ErrMalformedRequest) {
		return c.JSON(http.StatusBadRequest, &activation.Result{Message: api.MsgIncompleteRequest})
	}
	if err != nil {
		// outages and conflicts must not look like a negative verification,
		// so they get the {"error": ...} envelope from the error handler
		return err
	}

	return c.JSON(http.StatusOK, res)
}
