package visit

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/pharmacy"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	completer *Completer
}

func NewHandler(completer *Completer) *Handler {
	return &Handler{completer: completer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staffGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	staffGroup.POST("/appointments/:id/complete", h.Complete)
}

func (h *Handler) Complete(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := scheduling.Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
	summary, err := h.completer.Complete(ctx, appointmentID, actor, req)
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrAppointmentNotFound),
			errors.Is(err, pharmacy.ErrMedicationNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, scheduling.ErrNotAllowed):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, scheduling.ErrNotBooked),
			errors.Is(err, billing.ErrInvoiceExists):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotToday),
			errors.Is(err, pharmacy.ErrMedicationInactive):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, summary)
}
