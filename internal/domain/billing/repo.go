package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	// Create inserts the invoice and its lines. A second invoice for the
	// same appointment returns ErrInvoiceExists.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	SetPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	Lines(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceLine, error)
}
