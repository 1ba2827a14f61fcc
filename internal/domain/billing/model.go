package billing

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	StatusIssued = "issued"
	StatusPaid   = "paid"
	StatusVoid   = "void"
)

// Invoice is the bill for one completed appointment: the flat consultation
// fee plus every prescription line total. At most one invoice exists per
// appointment.
type Invoice struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AppointmentID   uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status          string     `db:"status" json:"status"`
	ConsultationFee float64    `db:"consultation_fee" json:"consultation_fee"`
	MedicationTotal float64    `db:"medication_total" json:"medication_total"`
	Total           float64    `db:"total" json:"total"`
	IssuedAt        time.Time  `db:"issued_at" json:"issued_at"`
	DueDate         time.Time  `db:"due_date" json:"due_date"`
	PaidAt          *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	PaymentMethod   *string    `db:"payment_method" json:"payment_method,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Lines []*InvoiceLine `db:"-" json:"lines,omitempty"`
}

// InvoiceLine is one billed item. Prescription lines carry the originating
// prescription id; the consultation fee line does not.
type InvoiceLine struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	InvoiceID      uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	PrescriptionID *uuid.UUID `db:"prescription_id" json:"prescription_id,omitempty"`
	Description    string     `db:"description" json:"description"`
	Quantity       int        `db:"quantity" json:"quantity"`
	UnitPrice      float64    `db:"unit_price" json:"unit_price"`
	LineTotal      float64    `db:"line_total" json:"line_total"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

var validPaymentMethods = map[string]bool{
	"cash": true, "card": true, "upi": true, "insurance": true, "bank_transfer": true,
}
