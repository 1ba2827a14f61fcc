package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/pkg/pagination"
)

// Service owns hospital administration: departments, rooms, resources
// and doctor shift allocations.
type Service struct {
	departments DepartmentRepository
	rooms       RoomRepository
	resources   ResourceRepository
	allocations AllocationRepository
	logger      zerolog.Logger
}

func NewService(departments DepartmentRepository, rooms RoomRepository, resources ResourceRepository, allocations AllocationRepository, logger zerolog.Logger) *Service {
	return &Service{
		departments: departments,
		rooms:       rooms,
		resources:   resources,
		allocations: allocations,
		logger:      logger,
	}
}

// =========== Departments ===========

func (s *Service) CreateDepartment(ctx context.Context, name string, description *string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}
	d := &Department{ID: uuid.New(), Name: name, Description: description, Active: true}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("department_id", d.ID.String()).Str("name", d.Name).Msg("department created")
	return d, nil
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	d, err := s.departments.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDepartmentNotFound
	}
	return d, err
}

func (s *Service) UpdateDepartment(ctx context.Context, id uuid.UUID, name string, description *string, active bool) (*Department, error) {
	d, err := s.GetDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}
	d.Name = name
	d.Description = description
	d.Active = active
	if err := s.departments.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDepartments(ctx context.Context, p pagination.Params) ([]*Department, error) {
	return s.departments.List(ctx, p)
}

// =========== Rooms ===========

func (s *Service) CreateRoom(ctx context.Context, number, roomType string, departmentID *uuid.UUID) (*Room, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("room number is required")
	}
	if !validRoomTypes[roomType] {
		return nil, fmt.Errorf("invalid room type %q", roomType)
	}
	if departmentID != nil {
		if _, err := s.GetDepartment(ctx, *departmentID); err != nil {
			return nil, err
		}
	}
	r := &Room{ID: uuid.New(), Number: number, Type: roomType, DepartmentID: departmentID, Available: true}
	if err := s.rooms.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	r, err := s.rooms.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return r, err
}

func (s *Service) SetRoomAvailable(ctx context.Context, id uuid.UUID, available bool) (*Room, error) {
	r, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Available = available
	if err := s.rooms.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListRooms(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Room, error) {
	return s.rooms.List(ctx, departmentID, p)
}

// =========== Resources ===========

func (s *Service) CreateResource(ctx context.Context, name string, quantity int, departmentID *uuid.UUID) (*Resource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("resource name is required")
	}
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}
	if departmentID != nil {
		if _, err := s.GetDepartment(ctx, *departmentID); err != nil {
			return nil, err
		}
	}
	r := &Resource{ID: uuid.New(), Name: name, Quantity: quantity, DepartmentID: departmentID}
	if err := s.resources.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) AdjustResourceQuantity(ctx context.Context, id uuid.UUID, delta int) (*Resource, error) {
	r, err := s.resources.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Quantity+delta < 0 {
		return nil, fmt.Errorf("quantity cannot go below zero")
	}
	r.Quantity += delta
	if err := s.resources.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListResources(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Resource, error) {
	return s.resources.List(ctx, departmentID, p)
}

// =========== Allocations ===========

// AllocateDoctor books a room for a doctor's shift. The room must exist
// and be available; one room takes one doctor per shift.
func (s *Service) AllocateDoctor(ctx context.Context, doctorID, roomID uuid.UUID, date time.Time, shift string) (*DoctorAllocation, error) {
	if !validShifts[shift] {
		return nil, fmt.Errorf("invalid shift %q", shift)
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Available {
		return nil, ErrRoomOccupied
	}
	a := &DoctorAllocation{
		ID:       uuid.New(),
		DoctorID: doctorID,
		RoomID:   roomID,
		Date:     scheduling.DateOf(date),
		Shift:    shift,
	}
	if err := s.allocations.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("room_id", roomID.String()).
		Str("shift", shift).
		Msg("doctor allocated")
	return a, nil
}

func (s *Service) ReleaseAllocation(ctx context.Context, id uuid.UUID) error {
	return s.allocations.Delete(ctx, id)
}

func (s *Service) AllocationsForDate(ctx context.Context, date time.Time) ([]*DoctorAllocation, error) {
	return s.allocations.ListByDate(ctx, scheduling.DateOf(date))
}

func (s *Service) AllocationsForDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*DoctorAllocation, error) {
	return s.allocations.ListByDoctor(ctx, doctorID, scheduling.DateOf(from))
}
