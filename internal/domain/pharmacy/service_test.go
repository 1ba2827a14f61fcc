package pharmacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

// -- Mocks --

type mockMedicationRepo struct {
	meds map[uuid.UUID]*Medication
}

func newMockMedicationRepo() *mockMedicationRepo {
	return &mockMedicationRepo{meds: make(map[uuid.UUID]*Medication)}
}

func (m *mockMedicationRepo) Create(_ context.Context, med *Medication) error {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt
	m.meds[med.ID] = med
	return nil
}

func (m *mockMedicationRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, ErrMedicationNotFound
	}
	return med, nil
}

func (m *mockMedicationRepo) Update(_ context.Context, med *Medication) error {
	m.meds[med.ID] = med
	return nil
}

func (m *mockMedicationRepo) List(_ context.Context, _ string, limit, offset int) ([]*Medication, int, error) {
	var out []*Medication
	for _, med := range m.meds {
		out = append(out, med)
	}
	return out, len(out), nil
}

type mockPrescriptionRepo struct {
	rxs map[uuid.UUID]*Prescription
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{rxs: make(map[uuid.UUID]*Prescription)}
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) error {
	p.CreatedAt = time.Now()
	m.rxs[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.rxs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockPrescriptionRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.rxs[p.ID]; !ok {
		return ErrPrescriptionNotFound
	}
	m.rxs[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	p, ok := m.rxs[id]
	if !ok {
		return ErrPrescriptionNotFound
	}
	p.Status = status
	return nil
}

func (m *mockPrescriptionRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.rxs {
		if p.AppointmentID == appointmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPrescriptionRepo) ListByPatient(_ context.Context, _ uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, p := range m.rxs {
		out = append(out, p)
	}
	return out, len(out), nil
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

type rxEnv struct {
	svc   *Service
	meds  *mockMedicationRepo
	rxs   *mockPrescriptionRepo
	appts *mockAppointmentSource
}

func newRxEnv() *rxEnv {
	meds := newMockMedicationRepo()
	rxs := newMockPrescriptionRepo()
	appts := &mockAppointmentSource{appts: make(map[uuid.UUID]*scheduling.Appointment)}
	return &rxEnv{
		svc:   NewService(meds, rxs, appts, nil, zerolog.Nop()),
		meds:  meds,
		rxs:   rxs,
		appts: appts,
	}
}

func (e *rxEnv) addAppointment(status string) *scheduling.Appointment {
	a := &scheduling.Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Status: status}
	e.appts.appts[a.ID] = a
	return a
}

func (e *rxEnv) addMedication(name string, price float64) *Medication {
	m := &Medication{ID: uuid.New(), Name: name, Form: "tablet", UnitPrice: price, Active: true}
	e.meds.meds[m.ID] = m
	return m
}

// -- Frequency parsing --

func TestDosesPerDay(t *testing.T) {
	cases := []struct {
		frequency string
		want      int
	}{
		{"once daily", 1},
		{"Once a day before bed", 1},
		{"twice daily", 2},
		{"Two times a day", 2},
		{"morning and evening", 2},
		{"thrice daily", 3},
		{"three times a day after meals", 3},
		{"four times daily", 4},
		{"as needed", 1},
		{"", 1},
	}
	for _, tc := range cases {
		if got := DosesPerDay(tc.frequency); got != tc.want {
			t.Errorf("DosesPerDay(%q) = %d, want %d", tc.frequency, got, tc.want)
		}
	}
}

// -- Catalog --

func TestCreateMedication(t *testing.T) {
	e := newRxEnv()

	m := &Medication{Name: "Paracetamol", Form: "tablet", UnitPrice: 2.50}
	if err := e.svc.CreateMedication(context.Background(), m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.Active {
		t.Error("new medication should be active")
	}

	if err := e.svc.CreateMedication(context.Background(), &Medication{Form: "tablet"}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := e.svc.CreateMedication(context.Background(), &Medication{Name: "X", Form: "brick"}); err == nil {
		t.Error("expected error for invalid form")
	}
	if err := e.svc.CreateMedication(context.Background(), &Medication{Name: "X", UnitPrice: -1}); err == nil {
		t.Error("expected error for negative price")
	}
}

// -- Prescribing --

func TestPrescribe_QuantityAndTotal(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Amoxicillin", 10.00)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	out, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: med.ID, Dosage: "500mg", Frequency: "twice daily", DurationDays: 5},
	})
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 prescription, got %d", len(out))
	}
	p := out[0]
	if p.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", p.Quantity)
	}
	if p.LineTotal != 100.00 {
		t.Errorf("expected line total 100.00, got %.2f", p.LineTotal)
	}
	if p.UnitPrice != 10.00 {
		t.Errorf("expected snapshotted unit price 10.00, got %.2f", p.UnitPrice)
	}
	if p.MedicationName != "Amoxicillin" {
		t.Errorf("expected snapshotted name, got %q", p.MedicationName)
	}
	if p.Dosage != "500mg" {
		t.Errorf("expected dosage 500mg, got %q", p.Dosage)
	}
	if p.Status != RxStatusPending {
		t.Errorf("new prescription should be pending, got %q", p.Status)
	}
}

func TestPrescribe_PriceSnapshotSurvivesCatalogChange(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Ibuprofen", 4.00)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	out, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: med.ID, Dosage: "500mg", Frequency: "once daily", DurationDays: 3},
	})
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}

	med.UnitPrice = 9.99

	got, err := e.svc.GetPrescription(context.Background(), out[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UnitPrice != 4.00 || got.LineTotal != 12.00 {
		t.Errorf("catalog change leaked into prescription: %.2f / %.2f", got.UnitPrice, got.LineTotal)
	}
}

func TestPrescribe_Permissions(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Cetirizine", 1.00)
	items := []PrescriptionInput{{MedicationID: med.ID, Dosage: "500mg", Frequency: "once", DurationDays: 1}}

	other := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, err := e.svc.Prescribe(context.Background(), appt.ID, other, items); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Fatalf("other doctor: expected ErrNotAllowed, got %v", err)
	}

	admin := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RoleAdmin}}
	if _, err := e.svc.Prescribe(context.Background(), appt.ID, admin, items); err != nil {
		t.Fatalf("admin: %v", err)
	}
}

func TestPrescribe_Rejections(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Metformin", 3.00)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	if _, err := e.svc.Prescribe(context.Background(), uuid.New(), doctor, []PrescriptionInput{
		{MedicationID: med.ID, Dosage: "500mg", Frequency: "once", DurationDays: 1},
	}); !errors.Is(err, scheduling.ErrAppointmentNotFound) {
		t.Errorf("missing appointment: expected ErrAppointmentNotFound, got %v", err)
	}

	if _, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, nil); err == nil {
		t.Error("expected error for empty prescription")
	}

	if _, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: uuid.New(), Dosage: "500mg", Frequency: "once", DurationDays: 1},
	}); !errors.Is(err, ErrMedicationNotFound) {
		t.Errorf("unknown medication: expected ErrMedicationNotFound, got %v", err)
	}

	if _, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: med.ID, Dosage: "500mg", Frequency: "once", DurationDays: 0},
	}); err == nil {
		t.Error("expected error for zero duration")
	}

	med.Active = false
	if _, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: med.ID, Dosage: "500mg", Frequency: "once", DurationDays: 1},
	}); !errors.Is(err, ErrMedicationInactive) {
		t.Errorf("inactive medication: expected ErrMedicationInactive, got %v", err)
	}
	med.Active = true

	cancelled := e.addAppointment(scheduling.StatusCancelled)
	dc := scheduling.Actor{ID: cancelled.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, err := e.svc.Prescribe(context.Background(), cancelled.ID, dc, []PrescriptionInput{
		{MedicationID: med.ID, Dosage: "500mg", Frequency: "once", DurationDays: 1},
	}); !errors.Is(err, ErrAppointmentClosed) {
		t.Errorf("cancelled appointment: expected ErrAppointmentClosed, got %v", err)
	}
}

func TestPrescribe_MultipleLines(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	a := e.addMedication("Drug A", 2.00)
	b := e.addMedication("Drug B", 0.50)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	out, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: a.ID, Dosage: "500mg", Frequency: "three times a day", DurationDays: 7},
		{MedicationID: b.ID, Dosage: "500mg", Frequency: "morning and evening", DurationDays: 10},
	})
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(out))
	}
	if out[0].Quantity != 21 || out[0].LineTotal != 42.00 {
		t.Errorf("line 1: got qty %d total %.2f", out[0].Quantity, out[0].LineTotal)
	}
	if out[1].Quantity != 20 || out[1].LineTotal != 10.00 {
		t.Errorf("line 2: got qty %d total %.2f", out[1].Quantity, out[1].LineTotal)
	}

	stored, _ := e.svc.ListByAppointment(context.Background(), appt.ID)
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored prescriptions, got %d", len(stored))
	}
}

func TestUpdatePrescription(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Amoxicillin", 4.50)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	lines, err := e.svc.Prescribe(context.Background(), appt.ID, doctor,
		[]PrescriptionInput{{MedicationID: med.ID, Dosage: "500mg", Frequency: "once daily", DurationDays: 5}})
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}
	rx := lines[0]

	// Catalog price change after prescribing must not leak into the line.
	med.UnitPrice = 9.99

	got, err := e.svc.UpdatePrescription(context.Background(), rx.ID, doctor, "250mg", "twice daily", 7, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Quantity != 14 {
		t.Errorf("expected quantity 14, got %d", got.Quantity)
	}
	if got.LineTotal != 63.00 {
		t.Errorf("expected line total from frozen price 4.50, got %v", got.LineTotal)
	}
}

func TestUpdatePrescription_Rejections(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Ibuprofen", 1.00)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	lines, err := e.svc.Prescribe(context.Background(), appt.ID, doctor,
		[]PrescriptionInput{{MedicationID: med.ID, Dosage: "500mg", Frequency: "once daily", DurationDays: 3}})
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}
	rx := lines[0]

	other := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, err := e.svc.UpdatePrescription(context.Background(), rx.ID, other, "250mg", "twice daily", 3, nil); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("other doctor: expected ErrNotAllowed, got %v", err)
	}

	if _, err := e.svc.UpdatePrescription(context.Background(), uuid.New(), doctor, "250mg", "twice daily", 3, nil); !errors.Is(err, ErrPrescriptionNotFound) {
		t.Errorf("missing: expected ErrPrescriptionNotFound, got %v", err)
	}

	if _, err := e.svc.UpdatePrescription(context.Background(), rx.ID, doctor, "250mg", "", 3, nil); err == nil {
		t.Error("expected error for empty frequency")
	}

	if _, err := e.svc.UpdatePrescription(context.Background(), rx.ID, doctor, "", "twice daily", 3, nil); err == nil {
		t.Error("expected error for empty dosage")
	}

	appt.Status = scheduling.StatusCompleted
	if _, err := e.svc.UpdatePrescription(context.Background(), rx.ID, doctor, "250mg", "twice daily", 3, nil); !errors.Is(err, ErrAppointmentClosed) {
		t.Errorf("completed: expected ErrAppointmentClosed, got %v", err)
	}
}

func TestPrescribe_DosageRequired(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Cetirizine", 1.00)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	if _, err := e.svc.Prescribe(context.Background(), appt.ID, doctor, []PrescriptionInput{
		{MedicationID: med.ID, Frequency: "once daily", DurationDays: 3},
	}); err == nil {
		t.Error("expected error for missing dosage")
	}
}

func TestDispense(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Amoxicillin", 4.50)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	lines, err := e.svc.Prescribe(context.Background(), appt.ID, doctor,
		[]PrescriptionInput{{MedicationID: med.ID, Dosage: "500mg", Frequency: "once daily", DurationDays: 5}})
	if err != nil {
		t.Fatalf("prescribe: %v", err)
	}
	rx := lines[0]

	got, err := e.svc.Dispense(context.Background(), rx.ID)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if got.Status != RxStatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}

	if _, err := e.svc.Dispense(context.Background(), rx.ID); !errors.Is(err, ErrAlreadyDispensed) {
		t.Errorf("second dispense: expected ErrAlreadyDispensed, got %v", err)
	}
	if _, err := e.svc.UpdatePrescription(context.Background(), rx.ID, doctor, "250mg", "twice daily", 3, nil); !errors.Is(err, ErrAlreadyDispensed) {
		t.Errorf("edit after dispense: expected ErrAlreadyDispensed, got %v", err)
	}

	if _, err := e.svc.Dispense(context.Background(), uuid.New()); !errors.Is(err, ErrPrescriptionNotFound) {
		t.Errorf("missing: expected ErrPrescriptionNotFound, got %v", err)
	}
}

func TestPrescriptionReads_PatientScoping(t *testing.T) {
	e := newRxEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	med := e.addMedication("Sertraline", 6.00)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	if _, err := e.svc.Prescribe(context.Background(), appt.ID, doctor,
		[]PrescriptionInput{{MedicationID: med.ID, Dosage: "50mg", Frequency: "once daily", DurationDays: 30}}); err != nil {
		t.Fatalf("prescribe: %v", err)
	}

	stranger := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RolePatient}}
	if _, err := e.svc.PrescriptionsForAppointment(context.Background(), appt.ID, stranger); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("foreign appointment read: expected ErrNotAllowed, got %v", err)
	}
	if _, _, err := e.svc.ListByPatient(context.Background(), appt.PatientID, stranger, 20, 0); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("foreign patient list: expected ErrNotAllowed, got %v", err)
	}

	owner := scheduling.Actor{ID: appt.PatientID.String(), Roles: []auth.Role{auth.RolePatient}}
	if items, err := e.svc.PrescriptionsForAppointment(context.Background(), appt.ID, owner); err != nil || len(items) != 1 {
		t.Errorf("own appointment read: got %d items, err %v", len(items), err)
	}
	if _, _, err := e.svc.ListByPatient(context.Background(), appt.PatientID, owner, 20, 0); err != nil {
		t.Errorf("own patient list: %v", err)
	}
	if _, _, err := e.svc.ListByPatient(context.Background(), appt.PatientID, doctor, 20, 0); err != nil {
		t.Errorf("doctor list: %v", err)
	}
}
