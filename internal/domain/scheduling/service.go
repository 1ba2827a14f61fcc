package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

// TxRunner executes fn inside a database transaction. The production runner
// closes over the pool via db.WithTx; tests pass nil for a passthrough.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Actor identifies the authenticated caller for permission checks on
// appointment reads and mutations.
type Actor struct {
	ID    string
	Roles []auth.Role
}

func (a Actor) owns(id uuid.UUID) bool { return a.ID == id.String() }

// canAccess reports whether the actor is a party to the appointment:
// its patient, its doctor, or an admin.
func (a Actor) canAccess(appt *Appointment) bool {
	if auth.HasRole(a.Roles, auth.RoleAdmin) {
		return true
	}
	return a.owns(appt.PatientID) || a.owns(appt.DoctorID)
}

// SlotTime is one bookable opening in a doctor's day.
type SlotTime struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

type Service struct {
	availability AvailabilityRepository
	slots        SlotRepository
	appointments AppointmentRepository
	runInTx      TxRunner
	logger       zerolog.Logger

	slotMinutes int
	workDayEnd  TimeOfDay

	now func() time.Time
}

func NewService(avail AvailabilityRepository, slots SlotRepository, appts AppointmentRepository, tx TxRunner, logger zerolog.Logger, slotMinutes int, workDayEnd TimeOfDay) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	return &Service{
		availability: avail,
		slots:        slots,
		appointments: appts,
		runInTx:      tx,
		logger:       logger,
		slotMinutes:  slotMinutes,
		workDayEnd:   workDayEnd,
		now:          time.Now,
	}
}

// -- Availability --

// ReplaceWeeklyAvailability swaps the doctor's entire weekly template for the
// given set of windows. Already-booked appointments are left untouched.
func (s *Service) ReplaceWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, windows []*AvailabilityWindow) error {
	if doctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidWindow)
	}
	for _, w := range windows {
		if !validWeekdays[w.Day] {
			return fmt.Errorf("%w: invalid day %q", ErrInvalidWindow, w.Day)
		}
		if w.StartTime >= w.EndTime {
			return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidWindow, w.StartTime, w.EndTime)
		}
		w.ID = uuid.New()
		w.DoctorID = doctorID
	}
	return s.runInTx(ctx, func(ctx context.Context) error {
		return s.availability.Replace(ctx, doctorID, windows)
	})
}

func (s *Service) WeeklyAvailability(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	return s.availability.ListByDoctor(ctx, doctorID)
}

// -- Slots --

// AvailableSlots computes the free openings for one doctor on one calendar
// date. Past dates and days without windows yield an empty list. Overlapping
// windows never produce a duplicate start time.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]SlotTime, error) {
	now := s.now()
	day := DateOf(date)
	today := DateOf(now)
	if day.Before(today) {
		return []SlotTime{}, nil
	}

	windows, err := s.availability.ListByDoctorDay(ctx, doctorID, WeekdayOf(day))
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []SlotTime{}, nil
	}

	booked, err := s.slots.BookedStartTimes(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	taken := make(map[TimeOfDay]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}

	seen := map[TimeOfDay]bool{}
	out := []SlotTime{}
	for _, w := range windows {
		for t := w.StartTime; t.Add(s.slotMinutes) <= w.EndTime; t = t.Add(s.slotMinutes) {
			if seen[t] || taken[t] {
				continue
			}
			if day.Equal(today) && t < MinutesOf(now) {
				continue
			}
			seen[t] = true
			out = append(out, SlotTime{Start: t, End: t.Add(s.slotMinutes)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// withinWindow reports whether start lands on a slot boundary inside one of
// the windows and the full slot fits before the window closes.
func (s *Service) withinWindow(windows []*AvailabilityWindow, start TimeOfDay) bool {
	for _, w := range windows {
		if start < w.StartTime || start.Add(s.slotMinutes) > w.EndTime {
			continue
		}
		if int(start-w.StartTime)%s.slotMinutes == 0 {
			return true
		}
	}
	return false
}

// -- Appointments --

// Book reserves the slot at date/start for the patient. The partial unique
// index on booked appointments makes the reservation race-safe: of two
// concurrent calls for the same slot exactly one succeeds, the other gets
// ErrSlotTaken.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, start TimeOfDay, symptoms string) (*Appointment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}

	now := s.now()
	day := DateOf(date)
	today := DateOf(now)
	if day.Before(today) || (day.Equal(today) && start < MinutesOf(now)) {
		return nil, ErrPastBooking
	}

	windows, err := s.availability.ListByDoctorDay(ctx, doctorID, WeekdayOf(day))
	if err != nil {
		return nil, err
	}
	if !s.withinWindow(windows, start) {
		return nil, ErrOutsideWorkingHours
	}

	slot, err := s.slots.GetOrCreate(ctx, doctorID, day, start, start.Add(s.slotMinutes))
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		SlotID:    slot.ID,
		Symptoms:  symptoms,
		Status:    StatusBooked,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}
	appt.Date = slot.Date
	appt.StartTime = slot.StartTime
	appt.EndTime = slot.EndTime

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctorID.String()).
		Str("date", day.Format("2006-01-02")).
		Str("start", start.String()).
		Msg("appointment booked")
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return appt, err
}

// Cancel frees the slot by moving a booked appointment to cancelled.
// Patients may cancel their own bookings, doctors the ones on their own
// schedule, admins any.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(appt) {
		return nil, ErrNotAllowed
	}
	if appt.Status != StatusBooked {
		return nil, ErrNotBooked
	}
	if err := s.appointments.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	appt.Status = StatusCancelled
	return appt, nil
}

// Reschedule moves a booked appointment to a new slot. The target is
// validated exactly like a fresh booking.
// Reschedule moves a booked appointment to a new slot, optionally under a
// different doctor and with updated symptoms. A zero doctorID keeps the
// current doctor; empty symptoms keep the current text. The old slot row is
// left in place.
func (s *Service) Reschedule(ctx context.Context, id, doctorID uuid.UUID, date time.Time, start TimeOfDay, symptoms string, actor Actor) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(appt) {
		return nil, ErrNotAllowed
	}
	if appt.Status != StatusBooked {
		return nil, ErrNotBooked
	}
	if doctorID == uuid.Nil {
		doctorID = appt.DoctorID
	}
	if symptoms == "" {
		symptoms = appt.Symptoms
	}

	now := s.now()
	day := DateOf(date)
	today := DateOf(now)
	if day.Before(today) || (day.Equal(today) && start < MinutesOf(now)) {
		return nil, ErrPastBooking
	}
	windows, err := s.availability.ListByDoctorDay(ctx, doctorID, WeekdayOf(day))
	if err != nil {
		return nil, err
	}
	if !s.withinWindow(windows, start) {
		return nil, ErrOutsideWorkingHours
	}

	slot, err := s.slots.GetOrCreate(ctx, doctorID, day, start, start.Add(s.slotMinutes))
	if err != nil {
		return nil, err
	}
	if err := s.appointments.Repoint(ctx, id, slot.ID, doctorID, symptoms); err != nil {
		return nil, err
	}
	appt.SlotID = slot.ID
	appt.DoctorID = doctorID
	appt.Symptoms = symptoms
	appt.Date = slot.Date
	appt.StartTime = slot.StartTime
	appt.EndTime = slot.EndTime
	return appt, nil
}

// Complete moves a booked appointment to completed. Orchestration around it
// (diagnosis, prescriptions, invoicing) lives in the visit package.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != StatusBooked {
		return ErrNotBooked
	}
	return s.appointments.UpdateStatus(ctx, id, StatusCompleted)
}

// ListByPatient returns one patient's appointments. Patients see only
// their own; staff see any patient's.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, actor Actor, limit, offset int) ([]*Appointment, int, error) {
	if auth.HasRole(actor.Roles, auth.RolePatient) &&
		!auth.HasRole(actor.Roles, auth.RoleDoctor) &&
		!auth.HasRole(actor.Roles, auth.RoleAdmin) &&
		!actor.owns(patientID) {
		return nil, 0, ErrNotAllowed
	}
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

// ListByDoctor returns one doctor's schedule. Doctors see only their own;
// admins see any. Patients go through ListByPatient instead.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, actor Actor, limit, offset int) ([]*Appointment, int, error) {
	if !auth.HasRole(actor.Roles, auth.RoleAdmin) && !actor.owns(doctorID) {
		return nil, 0, ErrNotAllowed
	}
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

// TodayForDoctor returns the doctor's appointments for the current date,
// sweeping stale no-shows first so the list never shows a booking whose
// working day already ended.
func (s *Service) TodayForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.ReconcileNoShows(ctx, s.now()); err != nil {
		return nil, err
	}
	return s.appointments.ListByDoctorDate(ctx, doctorID, DateOf(s.now()))
}

// -- No-show reconciliation --

// ReconcileNoShows cancels booked appointments that were never completed:
// the slot date is in the past, or it is today and the doctor's last window
// for the weekday has already ended. Appointments with a prescription on
// file are skipped by the candidate query. Returns the number cancelled.
func (s *Service) ReconcileNoShows(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	today := DateOf(asOf)
	nowMin := MinutesOf(asOf)

	candidates, err := s.appointments.ListNoShowCandidates(ctx, today, nowMin)
	if err != nil {
		return 0, err
	}

	type dayKey struct {
		doctor uuid.UUID
		day    Weekday
	}
	ends := map[dayKey]TimeOfDay{}

	count := 0
	for _, a := range candidates {
		if DateOf(a.Date).Equal(today) {
			k := dayKey{a.DoctorID, WeekdayOf(a.Date)}
			end, ok := ends[k]
			if !ok {
				end, err = s.lastWindowEnd(ctx, a.DoctorID, k.day)
				if err != nil {
					return count, err
				}
				ends[k] = end
			}
			if nowMin < end {
				continue
			}
		}
		if err := s.appointments.UpdateStatus(ctx, a.ID, StatusCancelled); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.logger.Info().Int("cancelled", count).Time("as_of", asOf).Msg("no-show sweep")
	}
	return count, nil
}

// lastWindowEnd is the latest window end for the doctor on the given day,
// falling back to the configured end of the working day when the doctor has
// no windows left for it.
func (s *Service) lastWindowEnd(ctx context.Context, doctorID uuid.UUID, day Weekday) (TimeOfDay, error) {
	windows, err := s.availability.ListByDoctorDay(ctx, doctorID, day)
	if err != nil {
		return 0, err
	}
	end := TimeOfDay(0)
	for _, w := range windows {
		if w.EndTime > end {
			end = w.EndTime
		}
	}
	if end == 0 {
		end = s.workDayEnd
	}
	return end, nil
}
