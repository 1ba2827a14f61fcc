package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/pharmacy"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

// AppointmentSource resolves appointments; the scheduling service
// satisfies it.
type AppointmentSource interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// PrescriptionSource lists an appointment's prescriptions; the pharmacy
// service satisfies it.
type PrescriptionSource interface {
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*pharmacy.Prescription, error)
}

// DueDays is how long after issue an invoice falls due.
const DueDays = 14

type Service struct {
	invoices      InvoiceRepository
	appts         AppointmentSource
	prescriptions PrescriptionSource
	runInTx       scheduling.TxRunner
	logger        zerolog.Logger

	consultationFee float64

	now func() time.Time
}

func NewService(invoices InvoiceRepository, appts AppointmentSource, prescriptions PrescriptionSource, tx scheduling.TxRunner, logger zerolog.Logger, consultationFee float64) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		invoices:        invoices,
		appts:           appts,
		prescriptions:   prescriptions,
		runInTx:         tx,
		logger:          logger,
		consultationFee: consultationFee,
		now:             time.Now,
	}
}

// ComposeForAppointment builds and stores the invoice for a completed
// appointment: one line per prescription plus the flat consultation fee.
// The unique constraint on appointment_id makes composition idempotent in
// the failure direction, a second call returns ErrInvoiceExists.
func (s *Service) ComposeForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != scheduling.StatusCompleted {
		return nil, ErrNotCompleted
	}

	rxs, err := s.prescriptions.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	issued := s.now()
	inv := &Invoice{
		ID:              uuid.New(),
		AppointmentID:   appointmentID,
		PatientID:       appt.PatientID,
		Status:          StatusIssued,
		ConsultationFee: s.consultationFee,
		IssuedAt:        issued,
		DueDate:         issued.AddDate(0, 0, DueDays),
	}

	medTotal := 0.0
	for _, rx := range rxs {
		rxID := rx.ID
		inv.Lines = append(inv.Lines, &InvoiceLine{
			ID:             uuid.New(),
			InvoiceID:      inv.ID,
			PrescriptionID: &rxID,
			Description:    rx.MedicationName,
			Quantity:       rx.Quantity,
			UnitPrice:      rx.UnitPrice,
			LineTotal:      rx.LineTotal,
		})
		medTotal += rx.LineTotal
	}
	inv.Lines = append(inv.Lines, &InvoiceLine{
		ID:          uuid.New(),
		InvoiceID:   inv.ID,
		Description: "Consultation fee",
		Quantity:    1,
		UnitPrice:   s.consultationFee,
		LineTotal:   s.consultationFee,
	})
	inv.MedicationTotal = roundMoney(medTotal)
	inv.Total = roundMoney(medTotal + s.consultationFee)

	err = s.runInTx(ctx, func(ctx context.Context) error {
		return s.invoices.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("appointment_id", appointmentID.String()).
		Float64("total", inv.Total).
		Msg("invoice issued")
	return inv, nil
}

// canRead reports whether the actor may see a patient's billing records.
// Patients see only their own; staff see any.
func canRead(actor scheduling.Actor, patientID uuid.UUID) bool {
	if auth.HasRole(actor.Roles, auth.RoleDoctor) || auth.HasRole(actor.Roles, auth.RoleAdmin) {
		return true
	}
	return actor.ID == patientID.String()
}

func (s *Service) getInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Lines, err = s.invoices.Lines(ctx, inv.ID)
	return inv, err
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID, actor scheduling.Actor) (*Invoice, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, inv.PatientID) {
		return nil, scheduling.ErrNotAllowed
	}
	return inv, nil
}

func (s *Service) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor) (*Invoice, error) {
	inv, err := s.invoices.GetByAppointment(ctx, appointmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canRead(actor, inv.PatientID) {
		return nil, scheduling.ErrNotAllowed
	}
	inv.Lines, err = s.invoices.Lines(ctx, inv.ID)
	return inv, err
}

// Pay settles an issued invoice. Patients may pay only their own; paid and
// void invoices reject payment.
func (s *Service) Pay(ctx context.Context, id uuid.UUID, actor scheduling.Actor, method string) (*Invoice, error) {
	if !validPaymentMethods[method] {
		return nil, fmt.Errorf("invalid payment method: %s", method)
	}
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, inv.PatientID) {
		return nil, scheduling.ErrNotAllowed
	}
	if inv.Status != StatusIssued {
		return nil, ErrNotPayable
	}
	paidAt := s.now()
	if err := s.invoices.SetPaid(ctx, id, method, paidAt); err != nil {
		return nil, err
	}
	inv.Status = StatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentMethod = &method
	return inv, nil
}

// Void writes off an issued invoice.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusIssued {
		return nil, ErrNotPayable
	}
	if err := s.invoices.SetStatus(ctx, id, StatusVoid); err != nil {
		return nil, err
	}
	inv.Status = StatusVoid
	return inv, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, actor scheduling.Actor, limit, offset int) ([]*Invoice, int, error) {
	if !canRead(actor, patientID) {
		return nil, 0, scheduling.ErrNotAllowed
	}
	return s.invoices.ListByPatient(ctx, patientID, limit, offset)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
