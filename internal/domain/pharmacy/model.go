package pharmacy

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Medication is a catalog entry. UnitPrice is the price per single dose
// unit (tablet, ml, vial) at the time of prescribing.
type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	GenericName    *string   `db:"generic_name" json:"generic_name,omitempty"`
	Form           string    `db:"form" json:"form"`
	Strength       *string   `db:"strength" json:"strength,omitempty"`
	UnitPrice      float64   `db:"unit_price" json:"unit_price"`
	SafetyWarnings *string   `db:"safety_warnings" json:"safety_warnings,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

var validMedicationForms = map[string]bool{
	"tablet": true, "capsule": true, "syrup": true,
	"injection": true, "ointment": true, "drops": true, "inhaler": true,
}

// Prescription statuses follow the dispensing lifecycle: lines start
// pending and move to completed when the pharmacy hands them out.
const (
	RxStatusPending   = "pending"
	RxStatusCompleted = "completed"
)

// Prescription ties one medication to one appointment. Quantity and pricing
// are derived once at creation and never recomputed, so later catalog price
// changes do not alter past prescriptions.
type Prescription struct {
	ID             uuid.UUID `db:"id" json:"id"`
	AppointmentID  uuid.UUID `db:"appointment_id" json:"appointment_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	DurationDays   int       `db:"duration_days" json:"duration_days"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitPrice      float64   `db:"unit_price" json:"unit_price"`
	LineTotal      float64   `db:"line_total" json:"line_total"`
	Status         string    `db:"status" json:"status"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// frequencyPhrases is checked in order so that the most specific phrase
// wins ("three times" before "once").
var frequencyPhrases = []struct {
	phrase string
	doses  int
}{
	{"four times", 4},
	{"three times", 3},
	{"thrice", 3},
	{"two times", 2},
	{"twice", 2},
	{"morning and evening", 2},
	{"once", 1},
}

// DosesPerDay derives a daily dose count from a free-text frequency such as
// "twice daily after meals". Unrecognized text falls back to one dose a day.
func DosesPerDay(frequency string) int {
	f := strings.ToLower(frequency)
	for _, p := range frequencyPhrases {
		if strings.Contains(f, p.phrase) {
			return p.doses
		}
	}
	return 1
}
