package pharmacy

import (
	"context"

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

func pick(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Medication Repository ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

const medCols = `id, name, generic_name, form, strength, unit_price, safety_warnings, active, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.GenericName, &m.Form, &m.Strength,
		&m.UnitPrice, &m.SafetyWarnings, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO medications (id, name, generic_name, form, strength, unit_price, safety_warnings, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.Name, m.GenericName, m.Form, m.Strength, m.UnitPrice, m.SafetyWarnings, m.Active)
	return err
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return scanMedication(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medCols+` FROM medications WHERE id = $1`, id))
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		UPDATE medications SET name=$2, generic_name=$3, form=$4, strength=$5,
			unit_price=$6, safety_warnings=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.Form, m.Strength, m.UnitPrice, m.SafetyWarnings, m.Active)
	return err
}

func (r *medicationRepoPG) List(ctx context.Context, nameFilter string, limit, offset int) ([]*Medication, int, error) {
	c := pick(ctx, r.pool)
	pattern := "%" + nameFilter + "%"
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM medications WHERE name ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT `+medCols+` FROM medications
		WHERE name ILIKE $1
		ORDER BY name
		LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const rxCols = `id, appointment_id, medication_id, medication_name, dosage, frequency,
	duration_days, quantity, unit_price, line_total, status, instructions, created_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.AppointmentID, &p.MedicationID, &p.MedicationName,
		&p.Dosage, &p.Frequency, &p.DurationDays, &p.Quantity, &p.UnitPrice, &p.LineTotal,
		&p.Status, &p.Instructions, &p.CreatedAt)
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescriptions (id, appointment_id, medication_id, medication_name,
			dosage, frequency, duration_days, quantity, unit_price, line_total, status, instructions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.AppointmentID, p.MedicationID, p.MedicationName,
		p.Dosage, p.Frequency, p.DurationDays, p.Quantity, p.UnitPrice, p.LineTotal,
		p.Status, p.Instructions)
	return err
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := pick(ctx, r.pool).Exec(ctx, `
		UPDATE prescriptions
		SET dosage = $2, frequency = $3, duration_days = $4, quantity = $5,
			line_total = $6, instructions = $7
		WHERE id = $1`,
		p.ID, p.Dosage, p.Frequency, p.DurationDays, p.Quantity, p.LineTotal, p.Instructions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := pick(ctx, r.pool).Exec(ctx,
		`UPDATE prescriptions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Prescription, error) {
	rows, err := pick(ctx, r.pool).Query(ctx, `
		SELECT `+rxCols+` FROM prescriptions
		WHERE appointment_id = $1
		ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	c := pick(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx, `
		SELECT COUNT(*) FROM prescriptions p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE a.patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT p.id, p.appointment_id, p.medication_id, p.medication_name, p.frequency,
			p.duration_days, p.quantity, p.unit_price, p.line_total, p.instructions, p.created_at
		FROM prescriptions p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE a.patient_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
