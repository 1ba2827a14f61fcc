package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AvailabilityRepository stores a doctor's weekly recurring windows.
type AvailabilityRepository interface {
	// Replace removes every existing window for the doctor and inserts the
	// given set in a single pass. Callers run it inside a transaction.
	Replace(ctx context.Context, doctorID uuid.UUID, windows []*AvailabilityWindow) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error)
	ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, day Weekday) ([]*AvailabilityWindow, error)
}

// SlotRepository materializes concrete dated slots on demand.
type SlotRepository interface {
	// GetOrCreate returns the slot for the doctor at the given date and start
	// time, creating it if it does not exist yet. Concurrent callers receive
	// the same row.
	GetOrCreate(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end TimeOfDay) (*TimeSlot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// BookedStartTimes returns the start times of slots on the date that have
	// a booked appointment attached.
	BookedStartTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error)
}

type AppointmentRepository interface {
	// Create inserts the appointment. A concurrent booking of the same slot
	// returns ErrSlotTaken.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// Repoint moves a booked appointment onto a new slot, possibly under a
	// new doctor, and rewrites its symptoms. A conflict on the target slot
	// returns ErrSlotTaken.
	Repoint(ctx context.Context, id, slotID, doctorID uuid.UUID, symptoms string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)
	// ListNoShowCandidates returns booked appointments on dates strictly
	// before the cutoff date, or on the cutoff date with a start time at or
	// before the cutoff minute, that have no prescription attached.
	ListNoShowCandidates(ctx context.Context, date time.Time, cutoff TimeOfDay) ([]*Appointment, error)
}
