package records

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staffGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	staffGroup.POST("/appointments/:id/diagnosis", h.RecordDiagnosis)
	staffGroup.POST("/patients/:id/conditions", h.AddCondition)
	staffGroup.DELETE("/conditions/:id", h.RemoveCondition)

	readGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	readGroup.GET("/appointments/:id/diagnosis", h.GetDiagnosis)
	readGroup.GET("/patients/:id/history", h.History)
	readGroup.GET("/patients/:id/conditions", h.Conditions)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNoteNotFound), errors.Is(err, ErrConditionNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scheduling.ErrNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, scheduling.ErrNotBooked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func actorFrom(c echo.Context) scheduling.Actor {
	ctx := c.Request().Context()
	return scheduling.Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
}

type diagnosisRequest struct {
	Diagnosis string  `json:"diagnosis"`
	Notes     *string `json:"notes,omitempty"`
}

func (h *Handler) RecordDiagnosis(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req diagnosisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.RecordDiagnosis(c.Request().Context(), appointmentID, actorFrom(c), req.Diagnosis, req.Notes)
	if err != nil {
		if errors.Is(err, scheduling.ErrAppointmentNotFound) || errors.Is(err, scheduling.ErrNotAllowed) ||
			errors.Is(err, scheduling.ErrNotBooked) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	n, err := h.svc.GetDiagnosis(c.Request().Context(), appointmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

type conditionRequest struct {
	Condition   string  `json:"condition"`
	DiagnosedOn *string `json:"diagnosed_on,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (h *Handler) AddCondition(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req conditionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var diagnosedOn *time.Time
	if req.DiagnosedOn != nil {
		d, err := time.Parse("2006-01-02", *req.DiagnosedOn)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnosed_on, want YYYY-MM-DD")
		}
		diagnosedOn = &d
	}
	m, err := h.svc.AddCondition(c.Request().Context(), patientID, req.Condition, diagnosedOn, req.Notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) RemoveCondition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid condition id")
	}
	if err := h.svc.RemoveCondition(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Conditions(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Conditions(c.Request().Context(), patientID, actorFrom(c), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), patientID, actorFrom(c), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
