package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const windowCols = `id, doctor_id, day_of_week, start_time, end_time, created_at`

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	err := row.Scan(&w.ID, &w.DoctorID, &w.Day, &w.StartTime, &w.EndTime, &w.CreatedAt)
	return &w, err
}

func (r *availabilityRepoPG) Replace(ctx context.Context, doctorID uuid.UUID, windows []*AvailabilityWindow) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx, `DELETE FROM availability_windows WHERE doctor_id = $1`, doctorID); err != nil {
		return err
	}
	for _, w := range windows {
		_, err := c.Exec(ctx, `
			INSERT INTO availability_windows (id, doctor_id, day_of_week, start_time, end_time)
			VALUES ($1,$2,$3,$4,$5)`,
			w.ID, w.DoctorID, w.Day, w.StartTime, w.EndTime)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM availability_windows
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_time`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func (r *availabilityRepoPG) ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, day Weekday) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM availability_windows
		WHERE doctor_id = $1 AND day_of_week = $2
		ORDER BY start_time`, doctorID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]*AvailabilityWindow, error) {
	var out []*AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const slotCols = `id, doctor_id, date, start_time, end_time, created_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var sl TimeSlot
	err := row.Scan(&sl.ID, &sl.DoctorID, &sl.Date, &sl.StartTime, &sl.EndTime, &sl.CreatedAt)
	return &sl, err
}

func (r *slotRepoPG) GetOrCreate(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end TimeOfDay) (*TimeSlot, error) {
	c := r.conn(ctx)
	// ON CONFLICT DO NOTHING keeps concurrent creates from failing; the
	// follow-up SELECT picks up whichever row won.
	_, err := c.Exec(ctx, `
		INSERT INTO time_slots (id, doctor_id, date, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (doctor_id, date, start_time) DO NOTHING`,
		uuid.New(), doctorID, date, start, end)
	if err != nil {
		return nil, err
	}
	return scanSlot(c.QueryRow(ctx, `
		SELECT `+slotCols+` FROM time_slots
		WHERE doctor_id = $1 AND date = $2 AND start_time = $3`,
		doctorID, date, start))
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM time_slots WHERE id = $1`, id))
}

func (r *slotRepoPG) BookedStartTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ts.start_time FROM time_slots ts
		JOIN appointments a ON a.slot_id = ts.id AND a.status = 'booked'
		WHERE ts.doctor_id = $1 AND ts.date = $2`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimeOfDay
	for rows.Next() {
		var t TimeOfDay
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.slot_id, a.symptoms, a.status,
	a.created_at, a.updated_at, ts.date, ts.start_time, ts.end_time`

const apptFrom = ` FROM appointments a JOIN time_slots ts ON ts.id = a.slot_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Symptoms, &a.Status,
		&a.CreatedAt, &a.UpdatedAt, &a.Date, &a.StartTime, &a.EndTime)
	return &a, err
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_id, symptoms, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Symptoms, a.Status)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *appointmentRepoPG) Repoint(ctx context.Context, id, slotID, doctorID uuid.UUID, symptoms string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET slot_id = $2, doctor_id = $3, symptoms = $4, updated_at = NOW()
		WHERE id = $1`, id, slotID, doctorID, symptoms)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+apptFrom+`
		WHERE a.patient_id = $1
		ORDER BY ts.date DESC, ts.start_time DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectAppointments(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+apptFrom+`
		WHERE a.doctor_id = $1
		ORDER BY ts.date DESC, ts.start_time DESC
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectAppointments(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+apptFrom+`
		WHERE a.doctor_id = $1 AND ts.date = $2
		ORDER BY ts.start_time`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *appointmentRepoPG) ListNoShowCandidates(ctx context.Context, date time.Time, cutoff TimeOfDay) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+apptFrom+`
		WHERE a.status = 'booked'
		  AND (ts.date < $1 OR (ts.date = $1 AND ts.start_time <= $2))
		  AND NOT EXISTS (SELECT 1 FROM prescriptions p WHERE p.appointment_id = a.id)
		ORDER BY ts.date, ts.start_time`, date, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}
