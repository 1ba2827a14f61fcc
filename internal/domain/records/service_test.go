package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

type mockDiagnosisRepo struct {
	notes map[uuid.UUID]*DiagnosisNote
}

func (m *mockDiagnosisRepo) Upsert(_ context.Context, n *DiagnosisNote) error {
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	if old, ok := m.notes[n.AppointmentID]; ok {
		old.Diagnosis = n.Diagnosis
		old.Notes = n.Notes
		old.UpdatedAt = time.Now()
		*n = *old
		return nil
	}
	m.notes[n.AppointmentID] = n
	return nil
}

func (m *mockDiagnosisRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*DiagnosisNote, error) {
	n, ok := m.notes[appointmentID]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return n, nil
}

type mockHistoryRepo struct {
	entries map[uuid.UUID][]*HistoryEntry
}

func (m *mockHistoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error) {
	out := m.entries[patientID]
	return out, len(out), nil
}

type mockConditionRepo struct {
	conditions map[uuid.UUID]*MedicalHistory
}

func (m *mockConditionRepo) Create(_ context.Context, c *MedicalHistory) error {
	c.CreatedAt = time.Now()
	m.conditions[c.ID] = c
	return nil
}

func (m *mockConditionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.conditions[id]; !ok {
		return ErrConditionNotFound
	}
	delete(m.conditions, id)
	return nil
}

func (m *mockConditionRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalHistory, int, error) {
	var out []*MedicalHistory
	for _, c := range m.conditions {
		if c.PatientID == patientID {
			out = append(out, c)
		}
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

type recEnv struct {
	svc        *Service
	notes      *mockDiagnosisRepo
	history    *mockHistoryRepo
	conditions *mockConditionRepo
	appts      *mockAppointmentSource
}

func newRecEnv() *recEnv {
	notes := &mockDiagnosisRepo{notes: make(map[uuid.UUID]*DiagnosisNote)}
	history := &mockHistoryRepo{entries: make(map[uuid.UUID][]*HistoryEntry)}
	conditions := &mockConditionRepo{conditions: make(map[uuid.UUID]*MedicalHistory)}
	appts := &mockAppointmentSource{appts: make(map[uuid.UUID]*scheduling.Appointment)}
	return &recEnv{
		svc:        NewService(notes, history, conditions, appts, zerolog.Nop()),
		notes:      notes,
		history:    history,
		conditions: conditions,
		appts:      appts,
	}
}

func (e *recEnv) addAppointment(status string) *scheduling.Appointment {
	a := &scheduling.Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Status: status}
	e.appts.appts[a.ID] = a
	return a
}

func TestRecordDiagnosis(t *testing.T) {
	e := newRecEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	n, err := e.svc.RecordDiagnosis(context.Background(), appt.ID, doctor, "acute bronchitis", nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if n.PatientID != appt.PatientID || n.DoctorID != appt.DoctorID {
		t.Error("note not linked to the appointment parties")
	}

	// Rewriting replaces the text for the same appointment.
	n2, err := e.svc.RecordDiagnosis(context.Background(), appt.ID, doctor, "bronchitis, resolving", nil)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	got, err := e.svc.GetDiagnosis(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Diagnosis != "bronchitis, resolving" || got.ID != n2.ID {
		t.Errorf("expected replaced note, got %+v", got)
	}
}

func TestRecordDiagnosis_Rejections(t *testing.T) {
	e := newRecEnv()
	appt := e.addAppointment(scheduling.StatusBooked)
	doctor := scheduling.Actor{ID: appt.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}

	if _, err := e.svc.RecordDiagnosis(context.Background(), appt.ID, doctor, "", nil); err == nil {
		t.Error("expected error for empty diagnosis")
	}

	other := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, err := e.svc.RecordDiagnosis(context.Background(), appt.ID, other, "x", nil); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("other doctor: expected ErrNotAllowed, got %v", err)
	}

	cancelled := e.addAppointment(scheduling.StatusCancelled)
	dc := scheduling.Actor{ID: cancelled.DoctorID.String(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, err := e.svc.RecordDiagnosis(context.Background(), cancelled.ID, dc, "x", nil); !errors.Is(err, scheduling.ErrNotBooked) {
		t.Errorf("cancelled: expected ErrNotBooked, got %v", err)
	}

	if _, err := e.svc.RecordDiagnosis(context.Background(), uuid.New(), doctor, "x", nil); !errors.Is(err, scheduling.ErrAppointmentNotFound) {
		t.Errorf("missing: expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestHistory_Permissions(t *testing.T) {
	e := newRecEnv()
	patientID := uuid.New()
	e.history.entries[patientID] = []*HistoryEntry{{AppointmentID: uuid.New(), Status: scheduling.StatusCompleted}}

	owner := scheduling.Actor{ID: patientID.String(), Roles: []auth.Role{auth.RolePatient}}
	items, total, err := e.svc.History(context.Background(), patientID, owner, 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("own history: %v (%d items)", err, len(items))
	}

	stranger := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RolePatient}}
	if _, _, err := e.svc.History(context.Background(), patientID, stranger, 20, 0); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Fatalf("stranger: expected ErrNotAllowed, got %v", err)
	}

	doctor := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RoleDoctor}}
	if _, _, err := e.svc.History(context.Background(), patientID, doctor, 20, 0); err != nil {
		t.Fatalf("doctor: %v", err)
	}
}

func TestAddCondition(t *testing.T) {
	e := newRecEnv()
	patientID := uuid.New()
	on := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m, err := e.svc.AddCondition(context.Background(), patientID, "  type 2 diabetes ", &on, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.Condition != "type 2 diabetes" {
		t.Errorf("expected trimmed condition, got %q", m.Condition)
	}

	if _, err := e.svc.AddCondition(context.Background(), patientID, "   ", nil, nil); err == nil {
		t.Error("expected error for blank condition")
	}

	owner := scheduling.Actor{ID: patientID.String(), Roles: []auth.Role{auth.RolePatient}}
	items, total, err := e.svc.Conditions(context.Background(), patientID, owner, 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("list: %v (%d items)", err, len(items))
	}

	stranger := scheduling.Actor{ID: uuid.New().String(), Roles: []auth.Role{auth.RolePatient}}
	if _, _, err := e.svc.Conditions(context.Background(), patientID, stranger, 20, 0); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("stranger: expected ErrNotAllowed, got %v", err)
	}
}

func TestRemoveCondition(t *testing.T) {
	e := newRecEnv()
	m, err := e.svc.AddCondition(context.Background(), uuid.New(), "asthma", nil, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.svc.RemoveCondition(context.Background(), m.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := e.svc.RemoveCondition(context.Background(), m.ID); !errors.Is(err, ErrConditionNotFound) {
		t.Errorf("second remove: expected ErrConditionNotFound, got %v", err)
	}
}
