package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
)

func newTestHandler() (*Handler, *billEnv, *echo.Echo) {
	env := newBillEnv(50.00)
	return NewHandler(env.svc), env, echo.New()
}

// asUser stamps the request context the way the JWT middleware would.
func asUser(req *http.Request, id string, roles ...auth.Role) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, id)
	ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	return req.WithContext(ctx)
}

func TestHandler_Compose(t *testing.T) {
	h, env, e := newTestHandler()
	appt := env.addAppointment(scheduling.StatusCompleted)
	env.addPrescription(appt.ID, "Amoxicillin", 10, 10.00, 100.00)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.Compose(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var inv Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.Total != 150.00 {
		t.Errorf("expected total 150.00, got %.2f", inv.Total)
	}

	// Composing again conflicts.
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec2)
	c2.SetParamNames("id")
	c2.SetParamValues(appt.ID.String())
	err := h.Compose(c2)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_Compose_NotCompleted(t *testing.T) {
	h, env, e := newTestHandler()
	appt := env.addAppointment(scheduling.StatusBooked)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	err := h.Compose(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Pay(t *testing.T) {
	h, env, e := newTestHandler()
	appt := env.addAppointment(scheduling.StatusCompleted)
	inv, err := env.svc.ComposeForAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	body := `{"method":"upi"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r = asUser(r, appt.PatientID.String(), auth.RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(r, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.Pay(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetInvoice_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(r, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetInvoice(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_GetInvoice_OtherPatient(t *testing.T) {
	h, env, e := newTestHandler()
	appt := env.addAppointment(scheduling.StatusCompleted)
	inv, err := env.svc.ComposeForAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = asUser(r, uuid.NewString(), auth.RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(r, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	err = h.GetInvoice(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}

	// Paying a stranger's invoice is equally off-limits.
	body := strings.NewReader(`{"method":"cash"}`)
	r2 := httptest.NewRequest(http.MethodPost, "/", body)
	r2.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r2 = asUser(r2, uuid.NewString(), auth.RolePatient)
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(r2, rec2)
	c2.SetParamNames("id")
	c2.SetParamValues(inv.ID.String())

	err = h.Pay(c2)
	httpErr, ok = err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("pay: expected 403, got %v", err)
	}
}
