package records

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

// =========== Diagnosis Repository ===========

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) Upsert(ctx context.Context, n *DiagnosisNote) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO diagnosis_notes (id, appointment_id, patient_id, doctor_id, diagnosis, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (appointment_id) DO UPDATE
		SET diagnosis = EXCLUDED.diagnosis, notes = EXCLUDED.notes, updated_at = NOW()`,
		n.ID, n.AppointmentID, n.PatientID, n.DoctorID, n.Diagnosis, n.Notes)
	return err
}

func (r *diagnosisRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*DiagnosisNote, error) {
	var n DiagnosisNote
	err := pick(ctx, r.pool).QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, doctor_id, diagnosis, notes, created_at, updated_at
		FROM diagnosis_notes
		WHERE appointment_id = $1`, appointmentID).
		Scan(&n.ID, &n.AppointmentID, &n.PatientID, &n.DoctorID, &n.Diagnosis, &n.Notes, &n.CreatedAt, &n.UpdatedAt)
	return &n, err
}

// =========== Condition Repository ===========

type conditionRepoPG struct{ pool *pgxpool.Pool }

func NewConditionRepoPG(pool *pgxpool.Pool) ConditionRepository {
	return &conditionRepoPG{pool: pool}
}

func (r *conditionRepoPG) Create(ctx context.Context, m *MedicalHistory) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO medical_history (id, patient_id, condition, diagnosed_on, notes)
		VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.PatientID, m.Condition, m.DiagnosedOn, m.Notes)
	return err
}

func (r *conditionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := pick(ctx, r.pool).Exec(ctx,
		`DELETE FROM medical_history WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionNotFound
	}
	return nil
}

func (r *conditionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalHistory, int, error) {
	c := pick(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_history WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT id, patient_id, condition, diagnosed_on, notes, created_at
		FROM medical_history
		WHERE patient_id = $1
		ORDER BY diagnosed_on DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*MedicalHistory
	for rows.Next() {
		var m MedicalHistory
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Condition, &m.DiagnosedOn, &m.Notes, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}

// =========== History Repository ===========

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*HistoryEntry, int, error) {
	c := pick(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT a.id, a.doctor_id, ts.date, a.symptoms, a.status,
			dn.diagnosis, dn.notes,
			COALESCE(array_agg(p.medication_name) FILTER (WHERE p.id IS NOT NULL), '{}')
		FROM appointments a
		JOIN time_slots ts ON ts.id = a.slot_id
		LEFT JOIN diagnosis_notes dn ON dn.appointment_id = a.id
		LEFT JOIN prescriptions p ON p.appointment_id = a.id
		WHERE a.patient_id = $1
		GROUP BY a.id, a.doctor_id, ts.date, a.symptoms, a.status, dn.diagnosis, dn.notes
		ORDER BY ts.date DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.AppointmentID, &e.DoctorID, &e.Date, &e.Symptoms, &e.Status,
			&e.Diagnosis, &e.Notes, &e.Medications); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}
