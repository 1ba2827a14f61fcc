package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Weekday is the recurring availability day code.
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

var validWeekdays = map[Weekday]bool{
	Monday: true, Tuesday: true, Wednesday: true, Thursday: true,
	Friday: true, Saturday: true, Sunday: true,
}

// ParseWeekday converts a day code into a Weekday.
func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(s))
	if !validWeekdays[d] {
		return "", fmt.Errorf("invalid weekday %q", s)
	}
	return d, nil
}

// WeekdayOf maps a calendar date to its availability day code.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// TimeOfDay is a wall-clock time stored as minutes from midnight. It
// serializes as "HH:MM" in JSON and as an integer in the database.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns the time shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MinutesOf truncates a timestamp to its minutes-from-midnight component.
func MinutesOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// DateOf truncates a timestamp to its civil date, normalized to midnight
// UTC so dates parsed from JSON, read from the database, and derived from
// the clock all compare equal.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AvailabilityWindow is a recurring weekly working period for one doctor.
// A doctor may carry several windows on the same day.
type AvailabilityWindow struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Day       Weekday   `db:"day_of_week" json:"day"`
	StartTime TimeOfDay `db:"start_time" json:"start"`
	EndTime   TimeOfDay `db:"end_time" json:"end"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimeSlot is a materialized 30-minute booking unit, created lazily the
// first time a patient targets it. Unique per (doctor, date, start, end).
type TimeSlot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date      time.Time `db:"date" json:"date"`
	StartTime TimeOfDay `db:"start_time" json:"start"`
	EndTime   TimeOfDay `db:"end_time" json:"end"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Appointment statuses. Terminal states are never further mutated.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment is a patient booking against a time slot. At most one
// appointment per slot may hold status=booked; the storage layer enforces
// this with a partial unique index.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	SlotID    uuid.UUID `db:"slot_id" json:"slot_id"`
	Symptoms  string    `db:"symptoms" json:"symptoms"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Slot fields resolved by joined reads.
	Date      time.Time `db:"date" json:"date"`
	StartTime TimeOfDay `db:"start_time" json:"start"`
	EndTime   TimeOfDay `db:"end_time" json:"end"`
}
