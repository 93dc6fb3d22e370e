package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/metrics"
	"github.com/hackgods/training-appointments/internal/offday"
)

type fakeAppointments struct {
	createIn    appointment.NewAppointment
	createErr   error
	cancelled   *string
	available   bool
	days        []availability.DateAvailability
	listFilter  appointment.ListFilter
	limit       int
	offset      int
	notFoundIDs bool
}

func (f *fakeAppointments) appt(id uuid.UUID, status appointment.AppointmentStatus) *appointment.Appointment {
	return &appointment.Appointment{
		ID:        id,
		StudentID: f.createIn.StudentID,
		Date:      civil.Date{Year: 2024, Month: time.June, Day: 10},
		Type:      availability.MorningHalf,
		Status:    status,
	}
}

func (f *fakeAppointments) CreateAppointment(_ context.Context, in appointment.NewAppointment) (*appointment.Appointment, error) {
	f.createIn = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	a := f.appt(uuid.New(), appointment.StatusPending)
	a.Date, a.Type, a.Notes = in.Date, in.Type, in.Notes
	return a, nil
}

func (f *fakeAppointments) ConfirmAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if f.notFoundIDs {
		return nil, appointment.ErrAppointmentNotFound
	}
	return f.appt(id, appointment.StatusConfirmed), nil
}

func (f *fakeAppointments) CancelAppointment(_ context.Context, id uuid.UUID, reason *string) (*appointment.Appointment, error) {
	f.cancelled = reason
	a := f.appt(id, appointment.StatusCancelled)
	a.CancelReason = reason
	return a, nil
}

func (f *fakeAppointments) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error) {
	if f.notFoundIDs {
		return nil, errors.Join(errors.New("get appointment"), appointment.ErrAppointmentNotFound)
	}
	return &appointment.AppointmentDetail{
		Appointment: *f.appt(id, appointment.StatusPending),
		Student:     &appointment.Student{ID: uuid.New(), Name: "Ada"},
	}, nil
}

func (f *fakeAppointments) ListAppointments(_ context.Context, filter appointment.ListFilter) ([]appointment.Appointment, error) {
	f.listFilter = filter
	return []appointment.Appointment{*f.appt(uuid.New(), appointment.StatusPending)}, nil
}

func (f *fakeAppointments) ListAppointmentsByStudent(_ context.Context, _ uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
	f.limit, f.offset = limit, offset
	return []appointment.Appointment{}, nil
}

func (f *fakeAppointments) CheckAvailability(context.Context, civil.Date, availability.SlotKind) (bool, error) {
	return f.available, nil
}

func (f *fakeAppointments) AvailableSlots(_ context.Context, start, end civil.Date) ([]availability.DateAvailability, error) {
	if end.Before(start) {
		return nil, appointment.ErrInvalidRange
	}
	return f.days, nil
}

type fakeOffDays struct {
	created offday.Input
	items   map[uuid.UUID]offday.OffDay
}

func (f *fakeOffDays) Create(_ context.Context, in offday.Input) (*offday.OffDay, error) {
	normalized, err := offday.Normalize(in)
	if err != nil {
		return nil, err
	}
	f.created = normalized
	return &offday.OffDay{ID: uuid.New(), Date: normalized.Date, DisabledSlots: normalized.DisabledSlots, Reason: normalized.Reason}, nil
}

func (f *fakeOffDays) Update(_ context.Context, id uuid.UUID, in offday.Input) (*offday.OffDay, error) {
	if _, ok := f.items[id]; !ok {
		return nil, offday.ErrOffDayNotFound
	}
	return &offday.OffDay{ID: id, Date: in.Date, DisabledSlots: in.DisabledSlots}, nil
}

func (f *fakeOffDays) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return offday.ErrOffDayNotFound
	}
	return nil
}

func (f *fakeOffDays) Get(_ context.Context, id uuid.UUID) (*offday.OffDay, error) {
	o, ok := f.items[id]
	if !ok {
		return nil, offday.ErrOffDayNotFound
	}
	return &o, nil
}

func (f *fakeOffDays) List(context.Context) ([]offday.OffDay, error) {
	out := make([]offday.OffDay, 0, len(f.items))
	for _, o := range f.items {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOffDays) Calendar(_ context.Context, from, to civil.Date) ([]offday.Occurrence, error) {
	if to.Before(from) {
		return nil, offday.ErrInvalidRange
	}
	if to.DaysSince(from) >= 366 {
		return nil, offday.ErrRangeTooLarge
	}
	return []offday.Occurrence{{
		OffDayID: uuid.New(),
		Date:     from,
		Blocked:  []availability.SlotKind{availability.MorningHalf},
	}}, nil
}

type testServer struct {
	handler http.Handler
	appts   *fakeAppointments
	offDays *fakeOffDays
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	ts := &testServer{
		appts:   &fakeAppointments{},
		offDays: &fakeOffDays{items: map[uuid.UUID]offday.OffDay{}},
		reg:     reg,
	}
	ts.handler = NewRouter(RouterConfig{
		Appointments: ts.appts,
		OffDays:      ts.offDays,
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		CORSOrigins:  []string{"http://localhost:3000"},
		Env:          "test",
		Version:      "v0.0.0-test",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t)
	studentID := uuid.New()

	rec := ts.do(t, http.MethodPost, "/appointments", map[string]any{
		"studentId":       studentID.String(),
		"date":            "2024-06-10",
		"appointmentType": "Full_Day",
		"notes":           "portfolio review",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, studentID, ts.appts.createIn.StudentID)
	assert.Equal(t, availability.FullDay, ts.appts.createIn.Type)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 10}, ts.appts.createIn.Date)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-06-10", resp.Date)
	assert.Equal(t, "full_day", resp.AppointmentType)
	assert.Equal(t, "pending", resp.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAppointment_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad type", map[string]any{"studentId": uuid.NewString(), "date": "2024-06-10", "appointmentType": "evening"}},
		{"bad date", map[string]any{"studentId": uuid.NewString(), "date": "10/06/2024", "appointmentType": "morning"}},
		{"bad student", map[string]any{"studentId": "nope", "date": "2024-06-10", "appointmentType": "morning"}},
		{"missing fields", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/appointments", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_failed", decodeError(t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
}

func TestCreateAppointment_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{appointment.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{appointment.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
		{appointment.ErrStudentNotFound, http.StatusNotFound, "student_not_found"},
		{appointment.ErrDateInPast, http.StatusBadRequest, "date_in_past"},
		{appointment.ErrDateNotBookable, http.StatusBadRequest, "date_not_bookable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ts := newTestServer(t)
			ts.appts.createErr = tt.err

			rec := ts.do(t, http.MethodPost, "/appointments", map[string]any{
				"studentId":       uuid.NewString(),
				"date":            "2024-06-10",
				"appointmentType": "morning",
			})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestAppointmentLifecycleRoutes(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()

	rec := ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/cancel", map[string]any{"reason": "moved"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.appts.cancelled)
	assert.Equal(t, "moved", *ts.appts.cancelled)

	rec = ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, ts.appts.cancelled)

	rec = ts.do(t, http.MethodGet, "/appointments/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Student)
	assert.Equal(t, "Ada", resp.Student.Name)

	rec = ts.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.appts.notFoundIDs = true
	rec = ts.do(t, http.MethodGet, "/appointments/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAppointments(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments?startDate=2024-06-01&endDate=2024-06-30&includeCancelled=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.appts.listFilter.IncludeCancelled)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 30}, ts.appts.listFilter.End)

	rec = ts.do(t, http.MethodGet, "/appointments?startDate=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_endDate", decodeError(t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/students/"+uuid.NewString()+"/appointments?limit=5&offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.appts.limit)
	assert.Equal(t, 10, ts.appts.offset)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/students/"+uuid.NewString()+"/appointments?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.appts.available = true
	ts.appts.days = []availability.DateAvailability{
		{Date: civil.Date{Year: 2024, Month: time.June, Day: 10}, AvailableSlots: []availability.SlotKind{availability.AfternoonHalf}},
		{Date: civil.Date{Year: 2024, Month: time.June, Day: 11}, AvailableSlots: []availability.SlotKind{}},
	}

	rec := ts.do(t, http.MethodGet, "/appointments/availability?date=2024-06-10&type=morning", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2024-06-10","type":"morning","available":true}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/appointments/availability?date=2024-06-10&type=night", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments/available-slots?startDate=2024-06-10&endDate=2024-06-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"date":"2024-06-10","availableSlots":["afternoon"]},
		{"date":"2024-06-11","availableSlots":[]}
	]`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/appointments/available-slots?startDate=2024-06-11&endDate=2024-06-10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_range", decodeError(t, rec).Error)
}

func TestOffDayRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/admin-off-days", map[string]any{
		"date":          "2024-06-12",
		"disabledSlots": []string{"full_day"},
		"reason":        "Holiday",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created OffDayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, []string{"morning", "afternoon"}, created.DisabledSlots)
	assert.Equal(t, "2024-06-12", created.Date)

	rec = ts.do(t, http.MethodPost, "/admin-off-days", map[string]any{
		"date":          "2024-06-12",
		"disabledSlots": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin-off-days", map[string]any{
		"date":           "2024-06-12",
		"recurringUntil": "2024-07-01",
		"disabledSlots":  []string{"morning"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_off_day", decodeError(t, rec).Error)

	missing := uuid.NewString()
	rec = ts.do(t, http.MethodGet, "/admin-off-days/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/admin-off-days/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	existing := uuid.New()
	ts.offDays.items[existing] = offday.OffDay{ID: existing, Date: civil.Date{Year: 2024, Month: time.June, Day: 3},
		DisabledSlots: []availability.SlotKind{availability.MorningHalf}}

	rec = ts.do(t, http.MethodPut, "/admin-off-days/"+existing.String(), map[string]any{
		"date":          "2024-06-04",
		"disabledSlots": []string{"afternoon"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin-off-days", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []OffDayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = ts.do(t, http.MethodDelete, "/admin-off-days/"+existing.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin-off-days/calendar?startDate=2024-06-01&endDate=2024-06-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var occ []OccurrenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &occ))
	require.Len(t, occ, 1)
	assert.Equal(t, []string{"morning"}, occ[0].BlockedSlots)

	rec = ts.do(t, http.MethodGet, "/admin-off-days/calendar?startDate=2024-01-01&endDate=9999-12-31", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "range_too_large", decodeError(t, rec).Error)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewRouter(RouterConfig{
		Appointments: &fakeAppointments{},
		OffDays:      &fakeOffDays{},
		Postgres:     PingFunc(func(context.Context) error { return nil }),
		Redis:        PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"].Status)
	assert.Equal(t, "ok", ready.Dependencies["postgres"].Status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `training_http_requests_total{method="GET",route="/health/ready",status="200"} 1`)
}

func TestReadiness_PostgresDown(t *testing.T) {
	h := NewHealthHandler("test", "v1",
		DependencyCheck{Name: "postgres", Pinger: PingFunc(func(context.Context) error { return errors.New("down") }), Critical: true},
		DependencyCheck{Name: "redis", Pinger: nil},
	)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "error", ready.Status)
	assert.Equal(t, "v1", ready.Version)
	assert.NotContains(t, ready.Dependencies, "redis")
}
