package records

import (
	"time"

	"github.com/google/uuid"
)

// DiagnosisNote is the doctor's written outcome of a visit. One note per
// appointment; editing replaces the text rather than versioning it.
type DiagnosisNote struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// MedicalHistory is a standing condition on the patient's chart, recorded
// independently of any single visit.
type MedicalHistory struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Condition   string     `db:"condition" json:"condition"`
	DiagnosedOn *time.Time `db:"diagnosed_on" json:"diagnosed_on,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// HistoryEntry is one row of a patient's medical history: the visit, its
// diagnosis and what was prescribed, flattened for chronological reads.
type HistoryEntry struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          time.Time `json:"date"`
	Symptoms      string    `json:"symptoms"`
	Status        string    `json:"status"`
	Diagnosis     *string   `json:"diagnosis,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Medications   []string  `json:"medications,omitempty"`
}
