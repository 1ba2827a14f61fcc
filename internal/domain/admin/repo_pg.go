package admin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/pagination"
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

const departmentCols = `id, name, description, active, created_at, updated_at`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO departments (id, name, description, active)
		VALUES ($1,$2,$3,$4)`,
		d.ID, d.Name, d.Description, d.Active)
	if isUniqueViolation(err) {
		return ErrNameTaken
	}
	return err
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	return scanDepartment(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+departmentCols+` FROM departments WHERE id = $1`, id))
}

func (r *departmentRepoPG) Update(ctx context.Context, d *Department) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		UPDATE departments
		SET name = $2, description = $3, active = $4, updated_at = now()
		WHERE id = $1`,
		d.ID, d.Name, d.Description, d.Active)
	if isUniqueViolation(err) {
		return ErrNameTaken
	}
	return err
}

func (r *departmentRepoPG) List(ctx context.Context, p pagination.Params) ([]*Department, error) {
	rows, err := pick(ctx, r.pool).Query(ctx,
		`SELECT `+departmentCols+` FROM departments ORDER BY name `+p.SQL())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// =========== Room Repository ===========

type roomRepoPG struct{ pool *pgxpool.Pool }

func NewRoomRepoPG(pool *pgxpool.Pool) RoomRepository {
	return &roomRepoPG{pool: pool}
}

const roomCols = `id, number, type, department_id, available, created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.Number, &rm.Type, &rm.DepartmentID, &rm.Available, &rm.CreatedAt, &rm.UpdatedAt)
	return &rm, err
}

func (r *roomRepoPG) Create(ctx context.Context, rm *Room) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO rooms (id, number, type, department_id, available)
		VALUES ($1,$2,$3,$4,$5)`,
		rm.ID, rm.Number, rm.Type, rm.DepartmentID, rm.Available)
	if isUniqueViolation(err) {
		return ErrNameTaken
	}
	return err
}

func (r *roomRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+roomCols+` FROM rooms WHERE id = $1`, id))
}

func (r *roomRepoPG) Update(ctx context.Context, rm *Room) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		UPDATE rooms
		SET number = $2, type = $3, department_id = $4, available = $5, updated_at = now()
		WHERE id = $1`,
		rm.ID, rm.Number, rm.Type, rm.DepartmentID, rm.Available)
	return err
}

func (r *roomRepoPG) List(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Room, error) {
	query := `SELECT ` + roomCols + ` FROM rooms`
	args := []interface{}{}
	if departmentID != nil {
		query += ` WHERE department_id = $1`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY number ` + p.SQL()

	rows, err := pick(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// =========== Resource Repository ===========

type resourceRepoPG struct{ pool *pgxpool.Pool }

func NewResourceRepoPG(pool *pgxpool.Pool) ResourceRepository {
	return &resourceRepoPG{pool: pool}
}

const resourceCols = `id, name, quantity, department_id, created_at, updated_at`

func scanResource(row pgx.Row) (*Resource, error) {
	var res Resource
	err := row.Scan(&res.ID, &res.Name, &res.Quantity, &res.DepartmentID, &res.CreatedAt, &res.UpdatedAt)
	return &res, err
}

func (r *resourceRepoPG) Create(ctx context.Context, res *Resource) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO resources (id, name, quantity, department_id)
		VALUES ($1,$2,$3,$4)`,
		res.ID, res.Name, res.Quantity, res.DepartmentID)
	return err
}

func (r *resourceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	return scanResource(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+resourceCols+` FROM resources WHERE id = $1`, id))
}

func (r *resourceRepoPG) Update(ctx context.Context, res *Resource) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		UPDATE resources
		SET name = $2, quantity = $3, department_id = $4, updated_at = now()
		WHERE id = $1`,
		res.ID, res.Name, res.Quantity, res.DepartmentID)
	return err
}

func (r *resourceRepoPG) List(ctx context.Context, departmentID *uuid.UUID, p pagination.Params) ([]*Resource, error) {
	query := `SELECT ` + resourceCols + ` FROM resources`
	args := []interface{}{}
	if departmentID != nil {
		query += ` WHERE department_id = $1`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY name ` + p.SQL()

	rows, err := pick(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// =========== Allocation Repository ===========

type allocationRepoPG struct{ pool *pgxpool.Pool }

func NewAllocationRepoPG(pool *pgxpool.Pool) AllocationRepository {
	return &allocationRepoPG{pool: pool}
}

const allocationCols = `id, doctor_id, room_id, date, shift, created_at`

func scanAllocation(row pgx.Row) (*DoctorAllocation, error) {
	var a DoctorAllocation
	err := row.Scan(&a.ID, &a.DoctorID, &a.RoomID, &a.Date, &a.Shift, &a.CreatedAt)
	return &a, err
}

func (r *allocationRepoPG) Create(ctx context.Context, a *DoctorAllocation) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctor_allocations (id, doctor_id, room_id, date, shift)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.DoctorID, a.RoomID, a.Date, a.Shift)
	if isUniqueViolation(err) {
		return ErrRoomOccupied
	}
	return err
}

func (r *allocationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := pick(ctx, r.pool).Exec(ctx,
		`DELETE FROM doctor_allocations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAllocationNotFound
	}
	return nil
}

func (r *allocationRepoPG) ListByDate(ctx context.Context, date time.Time) ([]*DoctorAllocation, error) {
	rows, err := pick(ctx, r.pool).Query(ctx, `
		SELECT `+allocationCols+` FROM doctor_allocations
		WHERE date = $1 ORDER BY shift, room_id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func (r *allocationRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*DoctorAllocation, error) {
	rows, err := pick(ctx, r.pool).Query(ctx, `
		SELECT `+allocationCols+` FROM doctor_allocations
		WHERE doctor_id = $1 AND date >= $2 ORDER BY date, shift`, doctorID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func collectAllocations(rows pgx.Rows) ([]*DoctorAllocation, error) {
	var out []*DoctorAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
