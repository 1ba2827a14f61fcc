package admin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/pkg/pagination"
)

// DepartmentRepository persists departments.
type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	Update(ctx context.Context, d *Department) error
	List(ctx context.Context, p pagination.Params) ([]*Department, error)
}

// RoomRepository persists rooms.
type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	Update(ctx context.Context, r *Room) error
	List(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Room, error)
}

// ResourceRepository persists resources.
type ResourceRepository interface {
	Create(ctx context.Context, r *Resource) error
	GetByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	Update(ctx context.Context, r *Resource) error
	List(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Resource, error)
}

// AllocationRepository persists doctor-to-room shift allocations.
// Create returns ErrRoomOccupied when the room is already taken for
// that date and shift.
type AllocationRepository interface {
	Create(ctx context.Context, a *DoctorAllocation) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDate(ctx context.Context, date time.Time) ([]*DoctorAllocation, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*DoctorAllocation, error)
}
