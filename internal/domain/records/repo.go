package records

import (
	"context"

	"github.com/google/uuid"
)

type DiagnosisRepository interface {
	// Upsert inserts the note or replaces the existing one for the same
	// appointment.
	Upsert(ctx context.Context, n *DiagnosisNote) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*DiagnosisNote, error)
}

type HistoryRepository interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error)
}

type ConditionRepository interface {
	Create(ctx context.Context, m *MedicalHistory) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalHistory, int, error)
}
