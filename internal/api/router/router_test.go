package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/advice"
	"github.com/wolfman30/mediq-platform/internal/appointments"
	"github.com/wolfman30/mediq-platform/internal/auth"
	"github.com/wolfman30/mediq-platform/internal/doctors"
	httpmiddleware "github.com/wolfman30/mediq-platform/internal/http/middleware"
	"github.com/wolfman30/mediq-platform/internal/quota"
)

const secret = "router-secret"

type cannedClient struct{}

func (cannedClient) Complete(ctx context.Context, req advice.Request) (advice.Response, error) {
	return advice.Response{Text: "Drink water and rest."}, nil
}

type emptyDoctors struct{}

func (emptyDoctors) List(ctx context.Context, f doctors.ListFilter) ([]doctors.Doctor, error) {
	return []doctors.Doctor{}, nil
}
func (emptyDoctors) Get(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error) {
	return nil, doctors.ErrNotFound
}
func (emptyDoctors) UpdateProfile(ctx context.Context, id uuid.UUID, u doctors.ProfileUpdate) (*doctors.Doctor, error) {
	return nil, doctors.ErrNotFound
}
func (emptyDoctors) Stats(ctx context.Context, id uuid.UUID) (*doctors.Stats, error) {
	return &doctors.Stats{}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("down") }

type fixture struct {
	router    http.Handler
	patientID uuid.UUID
	doctorID  uuid.UUID
	doctorUID uuid.UUID
}

func newFixture(t *testing.T, checks map[string]Pinger) fixture {
	t.Helper()
	f := fixture{patientID: uuid.New(), doctorID: uuid.New(), doctorUID: uuid.New()}

	accRepo := accounts.NewInMemoryRepository()
	accRepo.Put(&accounts.Account{ID: f.patientID, FirstName: "Pat", LastName: "Doe", Email: "pat@example.com", Role: auth.RolePatient, Plan: accounts.PlanFree})
	accSvc := accounts.NewService(accRepo, 0, nil)

	apptRepo := appointments.NewMemoryRepository()
	apptRepo.AddDoctor(f.doctorID, "Dr. Grey", 5000)
	apptRepo.AddPatient(f.patientID, "Pat Doe")
	apptSvc := appointments.NewService(apptRepo, appointments.DefaultPricing(), nil)

	gate := quota.NewGate(quota.NewMemoryStore(), quota.DefaultLimits(), nil)
	adviceSvc := advice.NewService(cannedClient{}, gate, accSvc, advice.Options{}, nil)

	f.router = New(&Config{
		AuthSecret:   secret,
		RateLimiter:  httpmiddleware.NewRateLimiter(100, 100),
		HealthChecks: checks,
		Appointments: appointments.NewHandler(apptSvc, accSvc, nil),
		Doctors:      doctors.NewHandler(doctors.NewService(emptyDoctors{}, nil), nil),
		Accounts:     accounts.NewHandler(accSvc, nil),
		Advice:       advice.NewHandler(adviceSvc, nil),
	})
	return f
}

func (f fixture) call(t *testing.T, p *auth.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if p != nil {
		token, err := auth.IssueToken(secret, *p, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.call(t, nil, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterHealthDegraded(t *testing.T) {
	f := newFixture(t, map[string]Pinger{"postgres": failingPinger{}})
	rec := f.call(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"unavailable"`)
}

func TestRouterRequiresAuthentication(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.call(t, nil, http.MethodGet, "/api/v1/doctors", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRoleSeparation(t *testing.T) {
	f := newFixture(t, nil)
	patient := &auth.Principal{UserID: f.patientID, Role: auth.RolePatient}
	doctor := &auth.Principal{UserID: f.doctorUID, Role: auth.RoleDoctor, DoctorID: f.doctorID}

	assert.Equal(t, http.StatusForbidden, f.call(t, patient, http.MethodGet, "/api/v1/doctor/queue", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.call(t, doctor, http.MethodGet, "/api/v1/appointments/my", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.call(t, patient, http.MethodPost, "/api/v1/slots", map[string]any{}).Code)
	assert.Equal(t, http.StatusOK, f.call(t, doctor, http.MethodGet, "/api/v1/doctors", nil).Code)
	assert.Equal(t, http.StatusOK, f.call(t, patient, http.MethodGet, "/api/v1/me", nil).Code)
}

func TestRouterGeneralQueueFlow(t *testing.T) {
	f := newFixture(t, nil)
	patient := &auth.Principal{UserID: f.patientID, Role: auth.RolePatient}
	doctor := &auth.Principal{UserID: f.doctorUID, Role: auth.RoleDoctor, DoctorID: f.doctorID}

	rec := f.call(t, patient, http.MethodPost, "/api/v1/appointments/book-general", map[string]string{"notes": "sore throat"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var appt appointments.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, int64(4000), appt.Amount)

	rec = f.call(t, doctor, http.MethodGet, "/api/v1/doctor/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), appt.ID.String())

	rec = f.call(t, doctor, http.MethodPut, "/api/v1/doctor/queue/"+appt.ID.String()+"/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.call(t, doctor, http.MethodPut, "/api/v1/doctor/queue/"+appt.ID.String()+"/claim", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouterAdvice(t *testing.T) {
	f := newFixture(t, nil)
	patient := &auth.Principal{UserID: f.patientID, Role: auth.RolePatient}

	rec := f.call(t, patient, http.MethodPost, "/api/v1/advice", map[string]string{"message": "I have a headache"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Drink water")
}
