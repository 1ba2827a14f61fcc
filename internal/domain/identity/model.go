package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

// User is a login-capable person: patient, doctor or admin.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      auth.Role `db:"role" json:"role"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorProfile carries the clinical attributes of a doctor user.
type DoctorProfile struct {
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	DepartmentID    *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	Specialization  *string    `db:"specialization" json:"specialization,omitempty"`
	Qualification   *string    `db:"qualification" json:"qualification,omitempty"`
	ExperienceYears *int       `db:"experience_years" json:"experience_years,omitempty"`
	ConsultationFee *float64   `db:"consultation_fee" json:"consultation_fee,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientProfile carries the demographic attributes of a patient user.
type PatientProfile struct {
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	BloodGroup  *string    `db:"blood_group" json:"blood_group,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Doctor is a user joined with its profile, as returned by doctor listings.
type Doctor struct {
	User
	Profile *DoctorProfile `json:"profile,omitempty"`
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true,
}

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}
