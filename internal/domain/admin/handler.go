package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

// Handler exposes hospital administration endpoints. Everything except
// the department listing is admin-gated.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Department listing feeds the public doctors-by-department lookup.
	api.GET("/departments", h.ListDepartments)
	api.GET("/departments/:id", h.GetDepartment)

	g := api.Group("", auth.RequireRole(auth.RoleAdmin))
	g.POST("/departments", h.CreateDepartment)
	g.PUT("/departments/:id", h.UpdateDepartment)

	g.POST("/rooms", h.CreateRoom)
	g.GET("/rooms", h.ListRooms)
	g.POST("/rooms/:id/availability", h.SetRoomAvailable)

	g.POST("/resources", h.CreateResource)
	g.GET("/resources", h.ListResources)
	g.POST("/resources/:id/adjust", h.AdjustResource)

	g.POST("/allocations", h.AllocateDoctor)
	g.DELETE("/allocations/:id", h.ReleaseAllocation)
	g.GET("/allocations", h.ListAllocations)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrDepartmentNotFound),
		errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrResourceNotFound),
		errors.Is(err, ErrAllocationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRoomOccupied), errors.Is(err, ErrNameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

type departmentRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

func (h *Handler) CreateDepartment(c echo.Context) error {
	var req departmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.service.CreateDepartment(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.service.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDepartment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	d, err := h.service.UpdateDepartment(c.Request().Context(), id, req.Name, req.Description, active)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	out, err := h.service.ListDepartments(c.Request().Context(), pagination.FromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

type roomRequest struct {
	Number       string     `json:"number"`
	Type         string     `json:"type"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
}

func (h *Handler) CreateRoom(c echo.Context) error {
	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.service.CreateRoom(c.Request().Context(), req.Number, req.Type, req.DepartmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListRooms(c echo.Context) error {
	deptID, err := optionalDepartment(c)
	if err != nil {
		return err
	}
	out, err := h.service.ListRooms(c.Request().Context(), deptID, pagination.FromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SetRoomAvailable(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Available bool `json:"available"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.service.SetRoomAvailable(c.Request().Context(), id, req.Available)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type resourceRequest struct {
	Name         string     `json:"name"`
	Quantity     int        `json:"quantity"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
}

func (h *Handler) CreateResource(c echo.Context) error {
	var req resourceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.service.CreateResource(c.Request().Context(), req.Name, req.Quantity, req.DepartmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListResources(c echo.Context) error {
	deptID, err := optionalDepartment(c)
	if err != nil {
		return err
	}
	out, err := h.service.ListResources(c.Request().Context(), deptID, pagination.FromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AdjustResource(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.service.AdjustResourceQuantity(c.Request().Context(), id, req.Delta)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type allocationRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	RoomID   uuid.UUID `json:"room_id"`
	Date     string    `json:"date"`
	Shift    string    `json:"shift"`
}

func (h *Handler) AllocateDoctor(c echo.Context) error {
	var req allocationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	a, err := h.service.AllocateDoctor(c.Request().Context(), req.DoctorID, req.RoomID, date, req.Shift)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ReleaseAllocation(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.ReleaseAllocation(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListAllocations(c echo.Context) error {
	raw := c.QueryParam("date")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	out, err := h.service.AllocationsForDate(c.Request().Context(), date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func optionalDepartment(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("department_id")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid department_id")
	}
	return &id, nil
}
