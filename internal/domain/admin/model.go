package admin

import (
	"time"

	"github.com/google/uuid"
)

// Department groups doctors, rooms and resources.
type Department struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Room is a physical room, optionally owned by a department.
type Room struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Number       string     `db:"number" json:"number"`
	Type         string     `db:"type" json:"type"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	Available    bool       `db:"available" json:"available"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

var validRoomTypes = map[string]bool{
	"consultation": true,
	"ward":         true,
	"icu":          true,
	"operation":    true,
	"lab":          true,
}

// Resource is countable equipment or supply stock.
type Resource struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Quantity     int        `db:"quantity" json:"quantity"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DoctorAllocation assigns a doctor to a room for one shift of one day.
type DoctorAllocation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	RoomID    uuid.UUID `db:"room_id" json:"room_id"`
	Date      time.Time `db:"date" json:"date"`
	Shift     string    `db:"shift" json:"shift"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var validShifts = map[string]bool{
	"morning": true,
	"evening": true,
	"night":   true,
}
