package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/pharmacy"
	"github.com/hms/hms/internal/domain/records"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

// ErrNotToday means the appointment's slot is not on the current date, so
// the visit cannot be closed out yet (or anymore).
var ErrNotToday = errors.New("appointment is not scheduled for today")

// Scheduler is the slice of the scheduling service the completer needs.
type Scheduler interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) error
}

// Prescriber writes prescription lines for an appointment.
type Prescriber interface {
	Prescribe(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor, inputs []pharmacy.PrescriptionInput) ([]*pharmacy.Prescription, error)
}

// DiagnosisRecorder writes the visit's diagnosis note.
type DiagnosisRecorder interface {
	RecordDiagnosis(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor, diagnosis string, notes *string) (*records.DiagnosisNote, error)
}

// Biller issues the invoice for a completed appointment.
type Biller interface {
	ComposeForAppointment(ctx context.Context, appointmentID uuid.UUID) (*billing.Invoice, error)
}

// CompleteRequest is everything the doctor submits when closing a visit.
type CompleteRequest struct {
	Diagnosis     string                       `json:"diagnosis"`
	Notes         *string                      `json:"notes,omitempty"`
	Prescriptions []pharmacy.PrescriptionInput `json:"prescriptions,omitempty"`
}

// Summary is the full outcome of a completed visit.
type Summary struct {
	Appointment   *scheduling.Appointment  `json:"appointment"`
	Diagnosis     *records.DiagnosisNote   `json:"diagnosis"`
	Prescriptions []*pharmacy.Prescription `json:"prescriptions"`
	Invoice       *billing.Invoice         `json:"invoice"`
}

// Completer closes out a visit in one transaction: diagnosis note,
// prescriptions, status flip to completed, invoice.
type Completer struct {
	scheduler  Scheduler
	prescriber Prescriber
	diagnoses  DiagnosisRecorder
	biller     Biller
	runInTx    scheduling.TxRunner
	logger     zerolog.Logger

	now func() time.Time
}

func NewCompleter(scheduler Scheduler, prescriber Prescriber, diagnoses DiagnosisRecorder, biller Biller, tx scheduling.TxRunner, logger zerolog.Logger) *Completer {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Completer{
		scheduler:  scheduler,
		prescriber: prescriber,
		diagnoses:  diagnoses,
		biller:     biller,
		runInTx:    tx,
		logger:     logger,
		now:        time.Now,
	}
}

// Complete runs the whole close-out. Only the appointment's doctor or an
// admin may complete, only on the appointment's own day, and only while it
// is still booked. Any failing step rolls back every other one.
func (c *Completer) Complete(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor, req CompleteRequest) (*Summary, error) {
	appt, err := c.scheduler.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && actor.ID != appt.DoctorID.String() {
		return nil, scheduling.ErrNotAllowed
	}
	if appt.Status != scheduling.StatusBooked {
		return nil, scheduling.ErrNotBooked
	}
	if !scheduling.DateOf(appt.Date).Equal(scheduling.DateOf(c.now())) {
		return nil, ErrNotToday
	}

	summary := &Summary{Prescriptions: []*pharmacy.Prescription{}}
	err = c.runInTx(ctx, func(ctx context.Context) error {
		note, err := c.diagnoses.RecordDiagnosis(ctx, appointmentID, actor, req.Diagnosis, req.Notes)
		if err != nil {
			return err
		}
		summary.Diagnosis = note

		if len(req.Prescriptions) > 0 {
			rxs, err := c.prescriber.Prescribe(ctx, appointmentID, actor, req.Prescriptions)
			if err != nil {
				return err
			}
			summary.Prescriptions = rxs
		}

		if err := c.scheduler.Complete(ctx, appointmentID); err != nil {
			return err
		}

		inv, err := c.biller.ComposeForAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		summary.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	appt.Status = scheduling.StatusCompleted
	summary.Appointment = appt

	c.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Int("prescriptions", len(summary.Prescriptions)).
		Float64("invoice_total", summary.Invoice.Total).
		Msg("visit completed")
	return summary, nil
}
