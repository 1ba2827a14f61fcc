package records

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
	"github.com/hms/hms/internal/platform/auth"
)

// AppointmentSource resolves appointments; the scheduling service
// satisfies it.
type AppointmentSource interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

type Service struct {
	diagnoses  DiagnosisRepository
	history    HistoryRepository
	conditions ConditionRepository
	appts      AppointmentSource
	logger     zerolog.Logger
}

func NewService(diagnoses DiagnosisRepository, history HistoryRepository, conditions ConditionRepository, appts AppointmentSource, logger zerolog.Logger) *Service {
	return &Service{diagnoses: diagnoses, history: history, conditions: conditions, appts: appts, logger: logger}
}

// RecordDiagnosis writes the visit's diagnosis note. Only the appointment's
// doctor or an admin may write it, and not on a cancelled appointment.
func (s *Service) RecordDiagnosis(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor, diagnosis string, notes *string) (*DiagnosisNote, error) {
	if diagnosis == "" {
		return nil, fmt.Errorf("diagnosis is required")
	}
	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != appt.DoctorID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	if appt.Status == scheduling.StatusCancelled {
		return nil, scheduling.ErrNotBooked
	}

	n := &DiagnosisNote{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Diagnosis:     diagnosis,
		Notes:         notes,
	}
	if err := s.diagnoses.Upsert(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) GetDiagnosis(ctx context.Context, appointmentID uuid.UUID) (*DiagnosisNote, error) {
	n, err := s.diagnoses.GetByAppointment(ctx, appointmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	return n, err
}

// History returns the patient's visits newest first, each with its
// diagnosis and medications when present.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, actor scheduling.Actor, limit, offset int) ([]*HistoryEntry, int, error) {
	// Patients read their own chart; doctors and admins read any.
	if auth.HasRole(actor.Roles, auth.RolePatient) &&
		!auth.HasRole(actor.Roles, auth.RoleDoctor) &&
		!auth.HasRole(actor.Roles, auth.RoleAdmin) &&
		actor.ID != patientID.String() {
		return nil, 0, scheduling.ErrNotAllowed
	}
	return s.history.ListByPatient(ctx, patientID, limit, offset)
}

// AddCondition puts a standing condition on the patient's chart.
func (s *Service) AddCondition(ctx context.Context, patientID uuid.UUID, condition string, diagnosedOn *time.Time, notes *string) (*MedicalHistory, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, fmt.Errorf("condition is required")
	}
	m := &MedicalHistory{
		ID:          uuid.New(),
		PatientID:   patientID,
		Condition:   condition,
		DiagnosedOn: diagnosedOn,
		Notes:       notes,
	}
	if err := s.conditions.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("condition", condition).
		Msg("condition recorded")
	return m, nil
}

func (s *Service) RemoveCondition(ctx context.Context, id uuid.UUID) error {
	return s.conditions.Delete(ctx, id)
}

// Conditions lists the patient's chart entries, same visibility rules
// as History.
func (s *Service) Conditions(ctx context.Context, patientID uuid.UUID, actor scheduling.Actor, limit, offset int) ([]*MedicalHistory, int, error) {
	if auth.HasRole(actor.Roles, auth.RolePatient) &&
		!auth.HasRole(actor.Roles, auth.RoleDoctor) &&
		!auth.HasRole(actor.Roles, auth.RoleAdmin) &&
		actor.ID != patientID.String() {
		return nil, 0, scheduling.ErrNotAllowed
	}
	return s.conditions.ListByPatient(ctx, patientID, limit, offset)
}
