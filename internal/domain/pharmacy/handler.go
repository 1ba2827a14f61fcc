package pharmacy

import (
	"errors"
	"net/http"

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
	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/medications", h.CreateMedication)
	adminGroup.PUT("/medications/:id", h.UpdateMedication)

	staffGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	staffGroup.POST("/appointments/:id/prescriptions", h.Prescribe)
	staffGroup.PUT("/prescriptions/:id", h.UpdatePrescription)
	staffGroup.POST("/prescriptions/:id/dispense", h.Dispense)

	readGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	readGroup.GET("/medications", h.ListMedications)
	readGroup.GET("/medications/:id", h.GetMedication)
	readGroup.GET("/appointments/:id/prescriptions", h.ListByAppointment)
	readGroup.GET("/patients/:id/prescriptions", h.ListByPatient)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrMedicationNotFound),
		errors.Is(err, ErrPrescriptionNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scheduling.ErrNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAppointmentClosed),
		errors.Is(err, ErrAlreadyDispensed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrMedicationInactive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Medications --

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMedications(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Prescriptions --

type prescribeRequest struct {
	Items []PrescriptionInput `json:"items"`
}

func (h *Handler) Prescribe(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req prescribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := scheduling.Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
	out, err := h.svc.Prescribe(ctx, appointmentID, actor, req.Items)
	if err != nil {
		if errors.Is(err, ErrMedicationNotFound) || errors.Is(err, scheduling.ErrAppointmentNotFound) ||
			errors.Is(err, scheduling.ErrNotAllowed) || errors.Is(err, ErrAppointmentClosed) ||
			errors.Is(err, ErrMedicationInactive) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, out)
}

type updatePrescriptionRequest struct {
	Dosage       string  `json:"dosage"`
	Frequency    string  `json:"frequency"`
	DurationDays int     `json:"duration_days"`
	Instructions *string `json:"instructions,omitempty"`
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	var req updatePrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := scheduling.Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
	p, err := h.svc.UpdatePrescription(ctx, id, actor, req.Dosage, req.Frequency, req.DurationDays, req.Instructions)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) || errors.Is(err, scheduling.ErrAppointmentNotFound) ||
			errors.Is(err, scheduling.ErrNotAllowed) || errors.Is(err, ErrAppointmentClosed) ||
			errors.Is(err, ErrAlreadyDispensed) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	p, err := h.svc.Dispense(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListByAppointment(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	ctx := c.Request().Context()
	actor := scheduling.Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
	items, err := h.svc.PrescriptionsForAppointment(ctx, appointmentID, actor)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	actor := scheduling.Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
	items, total, err := h.svc.ListByPatient(ctx, patientID, actor, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
