package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/pharmacy"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

// -- Mocks --

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
	lines    map[uuid.UUID][]*InvoiceLine
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		lines:    make(map[uuid.UUID][]*InvoiceLine),
	}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	for _, other := range m.invoices {
		if other.AppointmentID == inv.AppointmentID {
			return ErrInvoiceExists
		}
	}
	cp := *inv
	cp.Lines = nil
	m.invoices[inv.ID] = &cp
	m.lines[inv.ID] = inv.Lines
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.AppointmentID == appointmentID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (m *mockInvoiceRepo) SetPaid(_ context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = StatusPaid
	inv.PaymentMethod = &method
	inv.PaidAt = &paidAt
	return nil
}

func (m *mockInvoiceRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	return nil
}

func (m *mockInvoiceRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) Lines(_ context.Context, invoiceID uuid.UUID) ([]*InvoiceLine, error) {
	return m.lines[invoiceID], nil
}

type mockAppointmentSource struct {
	appts map[uuid.UUID]*scheduling.Appointment
}

func (m *mockAppointmentSource) GetAppointment(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return a, nil
}

type mockPrescriptionSource struct {
	rxs map[uuid.UUID][]*pharmacy.Prescription
}

func (m *mockPrescriptionSource) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*pharmacy.Prescription, error) {
	return m.rxs[appointmentID], nil
}

var billNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// billClerk is a staff actor that passes every read guard.
var billClerk = scheduling.Actor{ID: uuid.NewString(), Roles: []auth.Role{auth.RoleAdmin}}

type billEnv struct {
	svc      *Service
	invoices *mockInvoiceRepo
	appts    *mockAppointmentSource
	rxs      *mockPrescriptionSource
}

func newBillEnv(fee float64) *billEnv {
	invoices := newMockInvoiceRepo()
	appts := &mockAppointmentSource{appts: make(map[uuid.UUID]*scheduling.Appointment)}
	rxs := &mockPrescriptionSource{rxs: make(map[uuid.UUID][]*pharmacy.Prescription)}
	svc := NewService(invoices, appts, rxs, nil, zerolog.Nop(), fee)
	svc.now = func() time.Time { return billNow }
	return &billEnv{svc: svc, invoices: invoices, appts: appts, rxs: rxs}
}

func (e *billEnv) addAppointment(status string) *scheduling.Appointment {
	a := &scheduling.Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Status: status}
	e.appts.appts[a.ID] = a
	return a
}

func (e *billEnv) addPrescription(appointmentID uuid.UUID, name string, qty int, unitPrice, lineTotal float64) {
	e.rxs.rxs[appointmentID] = append(e.rxs.rxs[appointmentID], &pharmacy.Prescription{
		ID:             uuid.New(),
		AppointmentID:  appointmentID,
		MedicationID:   uuid.New(),
		MedicationName: name,
		Quantity:       qty,
		UnitPrice:      unitPrice,
		LineTotal:      lineTotal,
	})
}

// -- Compose --

func TestComposeForAppointment(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)
	e.addPrescription(appt.ID, "Amoxicillin", 10, 10.00, 100.00)
	e.addPrescription(appt.ID, "Cetirizine", 5, 1.00, 5.00)

	inv, err := e.svc.ComposeForAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if inv.Status != StatusIssued {
		t.Errorf("expected issued, got %s", inv.Status)
	}
	if inv.MedicationTotal != 105.00 {
		t.Errorf("expected medication total 105.00, got %.2f", inv.MedicationTotal)
	}
	if inv.Total != 155.00 {
		t.Errorf("expected total 155.00, got %.2f", inv.Total)
	}
	// Two prescription lines plus the consultation fee line.
	if len(inv.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(inv.Lines))
	}
	feeLine := inv.Lines[len(inv.Lines)-1]
	if feeLine.Description != "Consultation fee" || feeLine.LineTotal != 50.00 {
		t.Errorf("unexpected fee line %+v", feeLine)
	}
	if !inv.DueDate.Equal(billNow.AddDate(0, 0, 14)) {
		t.Errorf("expected due 14 days after issue, got %v", inv.DueDate)
	}
	if inv.PatientID != appt.PatientID {
		t.Errorf("invoice patient mismatch")
	}
}

func TestComposeForAppointment_NoPrescriptions(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)

	inv, err := e.svc.ComposeForAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if inv.Total != 50.00 || len(inv.Lines) != 1 {
		t.Fatalf("consultation-only invoice wrong: total %.2f, %d lines", inv.Total, len(inv.Lines))
	}
}

func TestComposeForAppointment_Duplicate(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)

	if _, err := e.svc.ComposeForAppointment(context.Background(), appt.ID); err != nil {
		t.Fatalf("first compose: %v", err)
	}
	_, err := e.svc.ComposeForAppointment(context.Background(), appt.ID)
	if !errors.Is(err, ErrInvoiceExists) {
		t.Fatalf("expected ErrInvoiceExists, got %v", err)
	}
}

func TestComposeForAppointment_NotCompleted(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusBooked)

	_, err := e.svc.ComposeForAppointment(context.Background(), appt.ID)
	if !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}

	_, err = e.svc.ComposeForAppointment(context.Background(), uuid.New())
	if !errors.Is(err, scheduling.ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

// -- Payment --

func TestPay(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)
	inv, _ := e.svc.ComposeForAppointment(context.Background(), appt.ID)

	paid, err := e.svc.Pay(context.Background(), inv.ID, billClerk, "card")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != StatusPaid || paid.PaidAt == nil || *paid.PaymentMethod != "card" {
		t.Fatalf("unexpected paid invoice %+v", paid)
	}

	// A settled invoice cannot be paid again.
	if _, err := e.svc.Pay(context.Background(), inv.ID, billClerk, "cash"); !errors.Is(err, ErrNotPayable) {
		t.Fatalf("double pay: expected ErrNotPayable, got %v", err)
	}
}

func TestPay_Validation(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)
	inv, _ := e.svc.ComposeForAppointment(context.Background(), appt.ID)

	if _, err := e.svc.Pay(context.Background(), inv.ID, billClerk, "barter"); err == nil {
		t.Error("expected error for unknown payment method")
	}
	if _, err := e.svc.Pay(context.Background(), uuid.New(), billClerk, "cash"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestVoid(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)
	inv, _ := e.svc.ComposeForAppointment(context.Background(), appt.ID)

	voided, err := e.svc.Void(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.Status != StatusVoid {
		t.Errorf("expected void, got %s", voided.Status)
	}
	if _, err := e.svc.Pay(context.Background(), inv.ID, billClerk, "cash"); !errors.Is(err, ErrNotPayable) {
		t.Errorf("paying a void invoice: expected ErrNotPayable, got %v", err)
	}
}

// -- Read scoping --

func TestInvoiceReads_PatientScoping(t *testing.T) {
	e := newBillEnv(50.00)
	appt := e.addAppointment(scheduling.StatusCompleted)
	inv, err := e.svc.ComposeForAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	stranger := scheduling.Actor{ID: uuid.NewString(), Roles: []auth.Role{auth.RolePatient}}
	if _, err := e.svc.GetInvoice(context.Background(), inv.ID, stranger); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("foreign get: expected ErrNotAllowed, got %v", err)
	}
	if _, err := e.svc.GetInvoiceByAppointment(context.Background(), appt.ID, stranger); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("foreign get by appointment: expected ErrNotAllowed, got %v", err)
	}
	if _, _, err := e.svc.ListByPatient(context.Background(), appt.PatientID, stranger, 20, 0); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("foreign list: expected ErrNotAllowed, got %v", err)
	}
	if _, err := e.svc.Pay(context.Background(), inv.ID, stranger, "cash"); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("foreign pay: expected ErrNotAllowed, got %v", err)
	}

	owner := scheduling.Actor{ID: appt.PatientID.String(), Roles: []auth.Role{auth.RolePatient}}
	if _, err := e.svc.GetInvoice(context.Background(), inv.ID, owner); err != nil {
		t.Errorf("own get: %v", err)
	}
	if _, _, err := e.svc.ListByPatient(context.Background(), appt.PatientID, owner, 20, 0); err != nil {
		t.Errorf("own list: %v", err)
	}
	if _, err := e.svc.Pay(context.Background(), inv.ID, owner, "upi"); err != nil {
		t.Errorf("own pay: %v", err)
	}

	doctor := scheduling.Actor{ID: uuid.NewString(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, err := e.svc.GetInvoice(context.Background(), inv.ID, doctor); err != nil {
		t.Errorf("doctor get: %v", err)
	}
}
