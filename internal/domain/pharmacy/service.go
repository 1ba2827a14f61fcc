package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

// AppointmentSource resolves appointments for prescribing checks; the
// scheduling service satisfies it.
type AppointmentSource interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// PrescriptionInput is one line of a doctor's prescription request.
type PrescriptionInput struct {
	MedicationID uuid.UUID `json:"medication_id"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"`
	DurationDays int       `json:"duration_days"`
	Instructions *string   `json:"instructions,omitempty"`
}

type Service struct {
	meds          MedicationRepository
	prescriptions PrescriptionRepository
	appts         AppointmentSource
	runInTx       scheduling.TxRunner
	logger        zerolog.Logger
}

func NewService(meds MedicationRepository, prescriptions PrescriptionRepository, appts AppointmentSource, tx scheduling.TxRunner, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{meds: meds, prescriptions: prescriptions, appts: appts, runInTx: tx, logger: logger}
}

// -- Medication catalog --

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Form != "" && !validMedicationForms[m.Form] {
		return fmt.Errorf("invalid form: %s", m.Form)
	}
	if m.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative")
	}
	m.Active = true
	return s.meds.Create(ctx, m)
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := s.meds.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMedicationNotFound
	}
	return m, err
}

func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	if m.Form != "" && !validMedicationForms[m.Form] {
		return fmt.Errorf("invalid form: %s", m.Form)
	}
	if m.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative")
	}
	return s.meds.Update(ctx, m)
}

func (s *Service) ListMedications(ctx context.Context, nameFilter string, limit, offset int) ([]*Medication, int, error) {
	return s.meds.List(ctx, nameFilter, limit, offset)
}

// -- Prescribing --

// Prescribe writes one prescription per input line against the appointment.
// Quantity is doses-per-day times duration; the line total freezes the
// catalog unit price at this moment. Only the appointment's own doctor or
// an admin may prescribe, and never on a cancelled appointment.
func (s *Service) Prescribe(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor, inputs []PrescriptionInput) ([]*Prescription, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one prescription line is required")
	}

	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != appt.DoctorID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	if appt.Status == scheduling.StatusCancelled {
		return nil, ErrAppointmentClosed
	}

	out := make([]*Prescription, 0, len(inputs))
	for _, in := range inputs {
		if in.DurationDays <= 0 {
			return nil, fmt.Errorf("duration_days must be positive")
		}
		if in.Frequency == "" {
			return nil, fmt.Errorf("frequency is required")
		}
		if in.Dosage == "" {
			return nil, fmt.Errorf("dosage is required")
		}
		med, err := s.GetMedication(ctx, in.MedicationID)
		if err != nil {
			return nil, err
		}
		if !med.Active {
			return nil, fmt.Errorf("%w: %s", ErrMedicationInactive, med.Name)
		}

		qty := DosesPerDay(in.Frequency) * in.DurationDays
		out = append(out, &Prescription{
			ID:             uuid.New(),
			AppointmentID:  appointmentID,
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Dosage:         in.Dosage,
			Frequency:      in.Frequency,
			DurationDays:   in.DurationDays,
			Quantity:       qty,
			UnitPrice:      med.UnitPrice,
			LineTotal:      roundMoney(med.UnitPrice * float64(qty)),
			Status:         RxStatusPending,
			Instructions:   in.Instructions,
		})
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		for _, p := range out {
			if err := s.prescriptions.Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Int("lines", len(out)).
		Msg("prescriptions recorded")
	return out, nil
}

// UpdatePrescription rewrites a line's dosage, frequency, duration, and
// instructions. Quantity and line total are recomputed from the unit price
// frozen at creation; the appointment must still be booked and the line
// still pending.
func (s *Service) UpdatePrescription(ctx context.Context, id uuid.UUID, actor scheduling.Actor, dosage, frequency string, durationDays int, instructions *string) (*Prescription, error) {
	if durationDays <= 0 {
		return nil, fmt.Errorf("duration_days must be positive")
	}
	if frequency == "" {
		return nil, fmt.Errorf("frequency is required")
	}
	if dosage == "" {
		return nil, fmt.Errorf("dosage is required")
	}
	p, err := s.GetPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	appt, err := s.appts.GetAppointment(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != appt.DoctorID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	if appt.Status != scheduling.StatusBooked {
		return nil, ErrAppointmentClosed
	}
	if p.Status == RxStatusCompleted {
		return nil, ErrAlreadyDispensed
	}

	p.Dosage = dosage
	p.Frequency = frequency
	p.DurationDays = durationDays
	p.Quantity = DosesPerDay(frequency) * durationDays
	p.LineTotal = roundMoney(p.UnitPrice * float64(p.Quantity))
	p.Instructions = instructions
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Dispense marks a pending prescription as handed out. Dispensing is a
// one-way transition.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.GetPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == RxStatusCompleted {
		return nil, ErrAlreadyDispensed
	}
	if err := s.prescriptions.SetStatus(ctx, id, RxStatusCompleted); err != nil {
		return nil, err
	}
	p.Status = RxStatusCompleted
	s.logger.Info().Str("prescription_id", id.String()).Msg("prescription dispensed")
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	return p, err
}

// ListByAppointment is the unscoped read used by invoice composition.
func (s *Service) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListByAppointment(ctx, appointmentID)
}

// PrescriptionsForAppointment is the caller-facing variant: patients see
// only their own appointment's lines, staff see any.
func (s *Service) PrescriptionsForAppointment(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor) ([]*Prescription, error) {
	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if auth.HasRole(actor.Roles, auth.RolePatient) &&
		!auth.HasRole(actor.Roles, auth.RoleDoctor) &&
		!auth.HasRole(actor.Roles, auth.RoleAdmin) &&
		actor.ID != appt.PatientID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	return s.prescriptions.ListByAppointment(ctx, appointmentID)
}

// ListByPatient returns a patient's prescriptions. Patients see only their
// own; staff see any patient's.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, actor scheduling.Actor, limit, offset int) ([]*Prescription, int, error) {
	if auth.HasRole(actor.Roles, auth.RolePatient) &&
		!auth.HasRole(actor.Roles, auth.RoleDoctor) &&
		!auth.HasRole(actor.Roles, auth.RoleAdmin) &&
		actor.ID != patientID.String() {
		return nil, 0, scheduling.ErrNotAllowed
	}
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
