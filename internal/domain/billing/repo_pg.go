package billing

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

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const invoiceCols = `id, appointment_id, patient_id, status, consultation_fee,
	medication_total, total, issued_at, due_date, paid_at, payment_method,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.AppointmentID, &inv.PatientID, &inv.Status,
		&inv.ConsultationFee, &inv.MedicationTotal, &inv.Total, &inv.IssuedAt,
		&inv.DueDate, &inv.PaidAt, &inv.PaymentMethod, &inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	c := r.conn(ctx)
	_, err := c.Exec(ctx, `
		INSERT INTO invoices (id, appointment_id, patient_id, status, consultation_fee,
			medication_total, total, issued_at, due_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inv.ID, inv.AppointmentID, inv.PatientID, inv.Status, inv.ConsultationFee,
		inv.MedicationTotal, inv.Total, inv.IssuedAt, inv.DueDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrInvoiceExists
		}
		return err
	}
	for _, ln := range inv.Lines {
		_, err := c.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, prescription_id, description,
				quantity, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			ln.ID, ln.InvoiceID, ln.PrescriptionID, ln.Description,
			ln.Quantity, ln.UnitPrice, ln.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE appointment_id = $1`, appointmentID))
}

func (r *invoiceRepoPG) SetPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status = 'paid', payment_method = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $1`, id, method, paidAt)
	return err
}

func (r *invoiceRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *invoiceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	c := r.conn(ctx)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT `+invoiceCols+` FROM invoices
		WHERE patient_id = $1
		ORDER BY issued_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *invoiceRepoPG) Lines(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceLine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, prescription_id, description, quantity, unit_price, line_total, created_at
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY created_at, description`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*InvoiceLine
	for rows.Next() {
		var ln InvoiceLine
		if err := rows.Scan(&ln.ID, &ln.InvoiceID, &ln.PrescriptionID, &ln.Description,
			&ln.Quantity, &ln.UnitPrice, &ln.LineTotal, &ln.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &ln)
	}
	return out, rows.Err()
}
