package pharmacy

import "errors"

var (
	// ErrMedicationNotFound means no catalog entry exists with the given id.
	ErrMedicationNotFound = errors.New("medication not found")
	// ErrMedicationInactive means the catalog entry is retired and may not
	// be prescribed.
	ErrMedicationInactive = errors.New("medication is inactive")
	// ErrAppointmentClosed means the appointment was cancelled and can no
	// longer receive prescriptions.
	ErrAppointmentClosed = errors.New("appointment is cancelled")
	// ErrPrescriptionNotFound means no prescription exists with the given id.
	ErrPrescriptionNotFound = errors.New("prescription not found")
	// ErrAlreadyDispensed means the prescription was already handed out and
	// cannot be dispensed or edited again.
	ErrAlreadyDispensed = errors.New("prescription already dispensed")
)
