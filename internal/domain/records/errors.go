package records

import "errors"

var (
	// ErrNoteNotFound means no diagnosis note exists for the appointment.
	ErrNoteNotFound = errors.New("diagnosis note not found")
	// ErrConditionNotFound means the chart entry does not exist.
	ErrConditionNotFound = errors.New("condition not found")
)
