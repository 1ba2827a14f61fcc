package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

// Service owns user and profile lifecycle.
type Service struct {
	users    UserRepository
	doctors  DoctorProfileRepository
	patients PatientProfileRepository
	logger   zerolog.Logger
}

func NewService(users UserRepository, doctors DoctorProfileRepository, patients PatientProfileRepository, logger zerolog.Logger) *Service {
	return &Service{users: users, doctors: doctors, patients: patients, logger: logger}
}

// UserInput is the mutable subset of a user accepted from the API.
type UserInput struct {
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Role      string  `json:"role"`
	Phone     *string `json:"phone,omitempty"`
}

func (in *UserInput) validate() (auth.Role, error) {
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		return "", fmt.Errorf("valid email is required")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return "", fmt.Errorf("first_name and last_name are required")
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return "", err
	}
	return role, nil
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	role, err := in.validate()
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      role,
		Phone:     in.Phone,
		Active:    true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role.String()).Msg("user created")
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// UpdateUser replaces the mutable fields. Role changes are not accepted here.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, actor scheduling.Actor, in UserInput) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != u.ID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	in.Role = u.Role.String()
	if _, err := in.validate(); err != nil {
		return nil, err
	}
	u.Email = strings.ToLower(strings.TrimSpace(in.Email))
	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.Phone = in.Phone
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Deactivate soft-disables a user. Admin only, enforced at the route.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	return s.users.Update(ctx, u)
}

// ListDoctors returns doctor users, optionally filtered by department.
func (s *Service) ListDoctors(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Doctor, error) {
	if departmentID != nil {
		return s.users.ListDoctorsByDepartment(ctx, *departmentID, p)
	}
	users, err := s.users.ListByRole(ctx, auth.RoleDoctor, p)
	if err != nil {
		return nil, err
	}
	out := make([]*Doctor, 0, len(users))
	for _, u := range users {
		d := &Doctor{User: *u}
		if prof, err := s.doctors.Get(ctx, u.ID); err == nil {
			d.Profile = prof
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) ListPatients(ctx context.Context, p pagination.Params) ([]*User, error) {
	return s.users.ListByRole(ctx, auth.RolePatient, p)
}

// UpsertDoctorProfile writes the doctor profile. The target must be a
// doctor user; only that doctor or an admin may write it.
func (s *Service) UpsertDoctorProfile(ctx context.Context, userID uuid.UUID, actor scheduling.Actor, p *DoctorProfile) (*DoctorProfile, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleDoctor {
		return nil, ErrRoleMismatch
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != userID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	if p.ExperienceYears != nil && *p.ExperienceYears < 0 {
		return nil, fmt.Errorf("experience_years must not be negative")
	}
	if p.ConsultationFee != nil && *p.ConsultationFee < 0 {
		return nil, fmt.Errorf("consultation_fee must not be negative")
	}
	p.UserID = userID
	if err := s.doctors.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	p, err := s.doctors.Get(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// UpsertPatientProfile writes the patient profile. The target must be a
// patient user; only that patient or an admin may write it.
func (s *Service) UpsertPatientProfile(ctx context.Context, userID uuid.UUID, actor scheduling.Actor, p *PatientProfile) (*PatientProfile, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RolePatient {
		return nil, ErrRoleMismatch
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != userID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return nil, fmt.Errorf("invalid gender %q", *p.Gender)
	}
	if p.BloodGroup != nil && !validBloodGroups[*p.BloodGroup] {
		return nil, fmt.Errorf("invalid blood group %q", *p.BloodGroup)
	}
	p.UserID = userID
	if err := s.patients.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPatientProfile reads a patient profile. Patients may only read their own.
func (s *Service) GetPatientProfile(ctx context.Context, userID uuid.UUID, actor scheduling.Actor) (*PatientProfile, error) {
	if !auth.HasRole(actor.Roles, auth.RoleDoctor) && actor.ID != userID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	p, err := s.patients.Get(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}
