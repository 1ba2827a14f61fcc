package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) ListByRole(_ context.Context, role auth.Role, _ pagination.Params) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockUserRepo) ListDoctorsByDepartment(_ context.Context, _ uuid.UUID, _ pagination.Params) ([]*Doctor, error) {
	return nil, nil
}

type mockDoctorProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*DoctorProfile
}

func (m *mockDoctorProfileRepo) Upsert(_ context.Context, p *DoctorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *mockDoctorProfileRepo) Get(_ context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

type mockPatientProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*PatientProfile
}

func (m *mockPatientProfileRepo) Upsert(_ context.Context, p *PatientProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *mockPatientProfileRepo) Get(_ context.Context, userID uuid.UUID) (*PatientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func newIdentityEnv() (*Service, *mockUserRepo) {
	users := newMockUserRepo()
	doctors := &mockDoctorProfileRepo{profiles: make(map[uuid.UUID]*DoctorProfile)}
	patients := &mockPatientProfileRepo{profiles: make(map[uuid.UUID]*PatientProfile)}
	return NewService(users, doctors, patients, zerolog.Nop()), users
}

func seedUser(t *testing.T, svc *Service, role string) *User {
	t.Helper()
	u, err := svc.CreateUser(context.Background(), UserInput{
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Asha",
		LastName:  "Rao",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func asActor(u *User) scheduling.Actor {
	return scheduling.Actor{ID: u.ID.String(), Roles: []auth.Role{u.Role}}
}

func TestCreateUser(t *testing.T) {
	svc, _ := newIdentityEnv()

	u, err := svc.CreateUser(context.Background(), UserInput{
		Email:     "Asha.Rao@Example.com",
		FirstName: " Asha ",
		LastName:  "Rao",
		Role:      "doctor",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "asha.rao@example.com" {
		t.Errorf("email not normalized: %s", u.Email)
	}
	if u.FirstName != "Asha" {
		t.Errorf("first name not trimmed: %q", u.FirstName)
	}
	if u.Role != auth.RoleDoctor || !u.Active {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	svc, _ := newIdentityEnv()
	cases := []UserInput{
		{Email: "no-at-sign", FirstName: "A", LastName: "B", Role: "patient"},
		{Email: "a@b.com", FirstName: "", LastName: "B", Role: "patient"},
		{Email: "a@b.com", FirstName: "A", LastName: "B", Role: "superuser"},
	}
	for i, in := range cases {
		if _, err := svc.CreateUser(context.Background(), in); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc, _ := newIdentityEnv()
	in := UserInput{Email: "dup@example.com", FirstName: "A", LastName: "B", Role: "patient"}
	if _, err := svc.CreateUser(context.Background(), in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateUser(context.Background(), in); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateUser_Permissions(t *testing.T) {
	svc, _ := newIdentityEnv()
	u := seedUser(t, svc, "patient")
	stranger := seedUser(t, svc, "patient")

	in := UserInput{Email: u.Email, FirstName: "New", LastName: "Name"}
	if _, err := svc.UpdateUser(context.Background(), u.ID, asActor(stranger), in); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("stranger update: expected ErrNotAllowed, got %v", err)
	}

	got, err := svc.UpdateUser(context.Background(), u.ID, asActor(u), in)
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if got.FirstName != "New" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.Role != auth.RolePatient {
		t.Errorf("role must not change on update: %s", got.Role)
	}
}

func TestDeactivate(t *testing.T) {
	svc, users := newIdentityEnv()
	u := seedUser(t, svc, "doctor")

	if err := svc.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	stored, _ := users.GetByID(context.Background(), u.ID)
	if stored.Active {
		t.Error("user still active")
	}

	listed, _ := svc.ListDoctors(context.Background(), nil, pagination.Params{Limit: 20})
	if len(listed) != 0 {
		t.Errorf("deactivated doctor still listed: %d", len(listed))
	}
}

func TestUpsertDoctorProfile(t *testing.T) {
	svc, _ := newIdentityEnv()
	doc := seedUser(t, svc, "doctor")
	pat := seedUser(t, svc, "patient")

	spec := "cardiology"
	p, err := svc.UpsertDoctorProfile(context.Background(), doc.ID, asActor(doc), &DoctorProfile{Specialization: &spec})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.UserID != doc.ID {
		t.Errorf("user id not stamped: %s", p.UserID)
	}

	got, err := svc.GetDoctorProfile(context.Background(), doc.ID)
	if err != nil || got.Specialization == nil || *got.Specialization != "cardiology" {
		t.Fatalf("round trip failed: %+v, %v", got, err)
	}

	if _, err := svc.UpsertDoctorProfile(context.Background(), pat.ID, asActor(pat), &DoctorProfile{}); !errors.Is(err, ErrRoleMismatch) {
		t.Errorf("patient target: expected ErrRoleMismatch, got %v", err)
	}

	other := seedUser(t, svc, "doctor")
	if _, err := svc.UpsertDoctorProfile(context.Background(), doc.ID, asActor(other), &DoctorProfile{}); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("other doctor: expected ErrNotAllowed, got %v", err)
	}
}

func TestUpsertPatientProfile_Validation(t *testing.T) {
	svc, _ := newIdentityEnv()
	pat := seedUser(t, svc, "patient")

	bad := "unknown"
	if _, err := svc.UpsertPatientProfile(context.Background(), pat.ID, asActor(pat), &PatientProfile{Gender: &bad}); err == nil {
		t.Error("expected invalid gender error")
	}
	badBG := "Z+"
	if _, err := svc.UpsertPatientProfile(context.Background(), pat.ID, asActor(pat), &PatientProfile{BloodGroup: &badBG}); err == nil {
		t.Error("expected invalid blood group error")
	}

	bg := "O+"
	if _, err := svc.UpsertPatientProfile(context.Background(), pat.ID, asActor(pat), &PatientProfile{BloodGroup: &bg}); err != nil {
		t.Errorf("valid profile rejected: %v", err)
	}
}

func TestGetPatientProfile_Permissions(t *testing.T) {
	svc, _ := newIdentityEnv()
	pat := seedUser(t, svc, "patient")
	other := seedUser(t, svc, "patient")
	doc := seedUser(t, svc, "doctor")

	bg := "A-"
	if _, err := svc.UpsertPatientProfile(context.Background(), pat.ID, asActor(pat), &PatientProfile{BloodGroup: &bg}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	if _, err := svc.GetPatientProfile(context.Background(), pat.ID, asActor(other)); !errors.Is(err, scheduling.ErrNotAllowed) {
		t.Errorf("other patient: expected ErrNotAllowed, got %v", err)
	}
	if _, err := svc.GetPatientProfile(context.Background(), pat.ID, asActor(pat)); err != nil {
		t.Errorf("self read: %v", err)
	}
	if _, err := svc.GetPatientProfile(context.Background(), pat.ID, asActor(doc)); err != nil {
		t.Errorf("doctor read: %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	svc, _ := newIdentityEnv()
	if _, err := svc.GetUser(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
