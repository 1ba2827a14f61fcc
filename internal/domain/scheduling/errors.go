package scheduling

import "errors"

var (
	// ErrInvalidWindow wraps availability window validation failures.
	ErrInvalidWindow = errors.New("invalid availability window")
	// ErrOutsideWorkingHours means the requested start time does not fall on
	// a slot boundary inside any of the doctor's windows for that day.
	ErrOutsideWorkingHours = errors.New("requested time is outside the doctor's working hours")
	// ErrSlotTaken means another booked appointment already holds the slot.
	ErrSlotTaken = errors.New("slot is already booked")
	// ErrPastBooking means the requested slot start is in the past.
	ErrPastBooking = errors.New("cannot book a slot in the past")
	// ErrAppointmentNotFound means no appointment exists with the given id.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrNotBooked means the appointment is no longer in the booked state.
	ErrNotBooked = errors.New("appointment is not booked")
	// ErrNotAllowed means the caller may not act on this appointment.
	ErrNotAllowed = errors.New("not allowed to modify this appointment")
)
