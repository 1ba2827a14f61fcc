package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/auth"
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

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, email, first_name, last_name, role, phone, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role,
		&u.Phone, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Role, u.Phone, u.Active)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, phone = $5,
		    active = $6, updated_at = now()
		WHERE id = $1`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, u.Active)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *userRepoPG) ListByRole(ctx context.Context, role auth.Role, p pagination.Params) ([]*User, error) {
	rows, err := pick(ctx, r.pool).Query(ctx, `
		SELECT `+userCols+` FROM users
		WHERE role = $1 AND active
		ORDER BY last_name, first_name `+p.SQL(), role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepoPG) ListDoctorsByDepartment(ctx context.Context, departmentID uuid.UUID, p pagination.Params) ([]*Doctor, error) {
	rows, err := pick(ctx, r.pool).Query(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.phone,
		       u.active, u.created_at, u.updated_at,
		       dp.department_id, dp.specialization, dp.qualification,
		       dp.experience_years, dp.consultation_fee, dp.updated_at
		FROM users u
		JOIN doctor_profiles dp ON dp.user_id = u.id
		WHERE dp.department_id = $1 AND u.active
		ORDER BY u.last_name, u.first_name `+p.SQL(), departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var d Doctor
		var prof DoctorProfile
		err := rows.Scan(&d.ID, &d.Email, &d.FirstName, &d.LastName, &d.Role,
			&d.Phone, &d.Active, &d.CreatedAt, &d.UpdatedAt,
			&prof.DepartmentID, &prof.Specialization, &prof.Qualification,
			&prof.ExperienceYears, &prof.ConsultationFee, &prof.UpdatedAt)
		if err != nil {
			return nil, err
		}
		prof.UserID = d.ID
		d.Profile = &prof
		out = append(out, &d)
	}
	return out, rows.Err()
}

// =========== Doctor Profile Repository ===========

type doctorProfileRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorProfileRepoPG(pool *pgxpool.Pool) DoctorProfileRepository {
	return &doctorProfileRepoPG{pool: pool}
}

func (r *doctorProfileRepoPG) Upsert(ctx context.Context, p *DoctorProfile) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctor_profiles (user_id, department_id, specialization, qualification, experience_years, consultation_fee)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id) DO UPDATE
		SET department_id = EXCLUDED.department_id,
		    specialization = EXCLUDED.specialization,
		    qualification = EXCLUDED.qualification,
		    experience_years = EXCLUDED.experience_years,
		    consultation_fee = EXCLUDED.consultation_fee,
		    updated_at = now()`,
		p.UserID, p.DepartmentID, p.Specialization, p.Qualification,
		p.ExperienceYears, p.ConsultationFee)
	return err
}

func (r *doctorProfileRepoPG) Get(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	var p DoctorProfile
	err := pick(ctx, r.pool).QueryRow(ctx, `
		SELECT user_id, department_id, specialization, qualification,
		       experience_years, consultation_fee, updated_at
		FROM doctor_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.DepartmentID, &p.Specialization, &p.Qualification,
			&p.ExperienceYears, &p.ConsultationFee, &p.UpdatedAt)
	return &p, err
}

// =========== Patient Profile Repository ===========

type patientProfileRepoPG struct{ pool *pgxpool.Pool }

func NewPatientProfileRepoPG(pool *pgxpool.Pool) PatientProfileRepository {
	return &patientProfileRepoPG{pool: pool}
}

func (r *patientProfileRepoPG) Upsert(ctx context.Context, p *PatientProfile) error {
	_, err := pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient_profiles (user_id, date_of_birth, gender, blood_group, address)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id) DO UPDATE
		SET date_of_birth = EXCLUDED.date_of_birth,
		    gender = EXCLUDED.gender,
		    blood_group = EXCLUDED.blood_group,
		    address = EXCLUDED.address,
		    updated_at = now()`,
		p.UserID, p.DateOfBirth, p.Gender, p.BloodGroup, p.Address)
	return err
}

func (r *patientProfileRepoPG) Get(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	var p PatientProfile
	err := pick(ctx, r.pool).QueryRow(ctx, `
		SELECT user_id, date_of_birth, gender, blood_group, address, updated_at
		FROM patient_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.DateOfBirth, &p.Gender, &p.BloodGroup, &p.Address, &p.UpdatedAt)
	return &p, err
}
