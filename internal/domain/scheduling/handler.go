package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	// Schedule management – doctors maintain their own template, admins any
	schedGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	schedGroup.PUT("/doctors/:id/availability", h.ReplaceAvailability)
	schedGroup.GET("/doctors/:id/appointments/today", h.TodayForDoctor)
	schedGroup.POST("/appointments/reconcile", h.ReconcileNoShows)

	// Booking surface – every authenticated role
	bookGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	bookGroup.GET("/doctors/:id/availability", h.GetAvailability)
	bookGroup.GET("/doctors/:id/slots", h.AvailableSlots)
	bookGroup.POST("/appointments", h.Book)
	bookGroup.GET("/appointments", h.ListAppointments)
	bookGroup.GET("/appointments/:id", h.GetAppointment)
	bookGroup.POST("/appointments/:id/cancel", h.Cancel)
	bookGroup.POST("/appointments/:id/reschedule", h.Reschedule)
}

func actorFrom(c echo.Context) Actor {
	ctx := c.Request().Context()
	return Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
}

// httpError maps domain sentinels onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotBooked), errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrPastBooking), errors.Is(err, ErrOutsideWorkingHours):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// -- Availability --

type windowInput struct {
	Day   Weekday   `json:"day"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

type replaceAvailabilityRequest struct {
	Windows []windowInput `json:"windows"`
}

func (h *Handler) ReplaceAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	actor := actorFrom(c)
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != doctorID.String() {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only edit their own availability")
	}

	var req replaceAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	windows := make([]*AvailabilityWindow, 0, len(req.Windows))
	for _, in := range req.Windows {
		windows = append(windows, &AvailabilityWindow{Day: in.Day, StartTime: in.Start, EndTime: in.End})
	}
	if err := h.svc.ReplaceWeeklyAvailability(c.Request().Context(), doctorID, windows); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"doctor_id": doctorID, "windows": windows})
}

func (h *Handler) GetAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	windows, err := h.svc.WeeklyAvailability(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	if windows == nil {
		windows = []*AvailabilityWindow{}
	}
	return c.JSON(http.StatusOK, windows)
}

// -- Slots --

func (h *Handler) AvailableSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	date, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      date.Format("2006-01-02"),
		"slots":     slots,
	})
}

// -- Appointments --

type bookRequest struct {
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	Date      string    `json:"date"`
	Start     TimeOfDay `json:"start"`
	Symptoms  string    `json:"symptoms"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}

	// Patients always book for themselves; staff may book on a patient's
	// behalf by naming the patient explicitly.
	actor := actorFrom(c)
	patientRef := req.PatientID
	if !auth.HasRole(actor.Roles, auth.RoleDoctor) && !auth.HasRole(actor.Roles, auth.RoleAdmin) {
		patientRef = actor.ID
	}
	patientID, err := uuid.Parse(patientRef)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	appt, err := h.svc.Book(c.Request().Context(), patientID, doctorID, date, req.Start, req.Symptoms)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !actorFrom(c).canAccess(appt) {
		return httpError(ErrNotAllowed)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	actor := actorFrom(c)

	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListByPatient(ctx, id, actor, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	if did := c.QueryParam("doctor_id"); did != "" {
		id, err := uuid.Parse(did)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		items, total, err := h.svc.ListByDoctor(ctx, id, actor, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "patient_id or doctor_id is required")
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Cancel(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type rescheduleRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id,omitempty"`
	Date     string     `json:"date"`
	Start    TimeOfDay  `json:"start"`
	Symptoms string     `json:"symptoms,omitempty"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}
	doctorID := uuid.Nil
	if req.DoctorID != nil {
		doctorID = *req.DoctorID
	}
	appt, err := h.svc.Reschedule(c.Request().Context(), id, doctorID, date, req.Start, req.Symptoms, actorFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) TodayForDoctor(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	actor := actorFrom(c)
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != doctorID.String() {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only view their own day")
	}
	items, err := h.svc.TodayForDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ReconcileNoShows(c echo.Context) error {
	asOf := time.Time{}
	if d := c.QueryParam("date"); d != "" {
		parsed, err := parseDate(d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
		// Sweep as of end of the given day.
		asOf = parsed.Add(24*time.Hour - time.Minute)
	}
	count, err := h.svc.ReconcileNoShows(c.Request().Context(), asOf)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"cancelled": count})
}
