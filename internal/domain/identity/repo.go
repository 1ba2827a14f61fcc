package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	ListByRole(ctx context.Context, role auth.Role, p pagination.Params) ([]*User, error)
	ListDoctorsByDepartment(ctx context.Context, departmentID uuid.UUID, p pagination.Params) ([]*Doctor, error)
}

// DoctorProfileRepository persists doctor profiles, one per doctor user.
type DoctorProfileRepository interface {
	Upsert(ctx context.Context, p *DoctorProfile) error
	Get(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
}

// PatientProfileRepository persists patient profiles, one per patient user.
type PatientProfileRepository interface {
	Upsert(ctx context.Context, p *PatientProfile) error
	Get(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
}
