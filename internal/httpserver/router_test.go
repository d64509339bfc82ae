package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/availability"
	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/response"
	"github.com/Freeeeeet/mentor_scheduler/internal/lock"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/notify"
	"github.com/Freeeeeet/mentor_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/mentor_scheduler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	schedules := memory.NewScheduleRepository()
	bookingRepo := memory.NewBookingRepository()
	resolver := availability.NewResolver(availability.NewExpander())

	store, err := availability.NewStore(schedules, bookingRepo, resolver, availability.StoreConfig{HorizonDays: 60}, logger)
	require.NoError(t, err)

	locker := lock.NewKeyedMutex()
	availabilitySvc := service.NewAvailabilityService(schedules, store, resolver, locker, 30, logger)
	bookingSvc := service.NewBookingService(bookingRepo, store, locker, notify.Nop{}, service.BookingConfig{PendingExpiry: time.Hour}, logger).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) })

	return NewRouter(logger, Deps{
		Schedules: availabilitySvc,
		Bookings:  bookingSvc,
		Payments:  bookingSvc,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[response.Response](t, rec)
	require.NotNil(t, body.Error, rec.Body.String())
	return body.Error.Code
}

const createMentor = `{
	"mentor_id": "mentor-1",
	"timezone": "UTC",
	"weekly_slots": [{"weekday": "monday", "start": "18:00", "end": "21:00"}]
}`

func TestRouter_BookingFlow(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/mentors", createMentor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/mentors/mentor-1/open-slots?from=2026-03-02&to=2026-03-08", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	open := decode[struct {
		Slots []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"slots"`
	}](t, rec)
	require.Len(t, open.Slots, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), open.Slots[0].Start)

	rec = do(t, h, http.MethodGet, "/mentors/mentor-1/availability?from=2026-03-02&to=2026-03-08", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avail := decode[struct {
		Intervals []struct {
			Start  time.Time `json:"start"`
			Source string    `json:"source"`
			Date   string    `json:"date"`
		} `json:"intervals"`
	}](t, rec)
	require.Len(t, avail.Intervals, 1)
	assert.Equal(t, "recurring", avail.Intervals[0].Source)
	assert.Equal(t, "2026-03-02", avail.Intervals[0].Date)

	rec = do(t, h, http.MethodPost, "/bookings", map[string]any{
		"mentor_id":    "mentor-1",
		"requester_id": "student-1",
		"start":        "2026-03-02T18:00:00Z",
		"end":          "2026-03-02T19:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decode[model.Booking](t, rec)
	assert.Equal(t, model.BookingStatusPendingPayment, booking.Status)

	rec = do(t, h, http.MethodPost, "/bookings", map[string]any{
		"mentor_id":    "mentor-1",
		"requester_id": "student-2",
		"local":        map[string]string{"date": "2026-03-02", "start": "18:30", "end": "19:30"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(response.CodeSlotUnavailable), errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/payments/events", map[string]any{
		"booking_id": booking.ID,
		"outcome":    "succeeded",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingStatusConfirmed, decode[model.Booking](t, rec).Status)

	rec = do(t, h, http.MethodPost, "/bookings/"+booking.ID.String()+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(response.CodeInvalidTransition), errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/bookings/"+booking.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingStatusCancelled, decode[model.Booking](t, rec).Status)

	rec = do(t, h, http.MethodGet, "/mentors/mentor-1/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Booking](t, rec), 1)
}

func TestRouter_Errors(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/mentors", createMentor).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   response.ErrCode
	}{
		{"duplicate schedule", http.MethodPost, "/mentors", createMentor, http.StatusConflict, response.CodeScheduleExists},
		{"broken json", http.MethodPost, "/mentors", "{", http.StatusBadRequest, response.CodeBadRequest},
		{"bad timezone", http.MethodPost, "/mentors", `{"mentor_id":"m2","timezone":"Nowhere/City"}`, http.StatusBadRequest, response.CodeInvalidTimezone},
		{"unknown schedule", http.MethodGet, "/mentors/ghost/schedule", nil, http.StatusNotFound, response.CodeScheduleNotFound},
		{"range too wide", http.MethodGet, "/mentors/mentor-1/open-slots?from=2026-03-01&to=2026-06-01", nil, http.StatusBadRequest, response.CodeRangeTooWide},
		{"missing range", http.MethodGet, "/mentors/mentor-1/open-slots", nil, http.StatusBadRequest, response.CodeBadRequest},
		{
			"overlapping weekly slots", http.MethodPut, "/mentors/mentor-1/weekly-slots",
			`{"weekly_slots":[{"weekday":"mon","start":"09:00","end":"11:00"},{"weekday":1,"start":"10:00","end":"12:00"}]}`,
			http.StatusUnprocessableEntity, response.CodeOverlappingWeekly,
		},
		{
			"overlapping add", http.MethodPut, "/mentors/mentor-1/overrides",
			`{"overrides":[{"date":"2026-03-02","start":"20:00","end":"22:00","kind":"ADD"}]}`,
			http.StatusUnprocessableEntity, response.CodeOverlappingOverride,
		},
		{
			"invalid duration", http.MethodPost, "/bookings",
			`{"mentor_id":"mentor-1","requester_id":"s","start":"2026-03-02T18:00:00Z","end":"2026-03-02T18:10:00Z"}`,
			http.StatusBadRequest, response.CodeInvalidDuration,
		},
		{
			"missing interval", http.MethodPost, "/bookings",
			`{"mentor_id":"mentor-1","requester_id":"s"}`,
			http.StatusBadRequest, response.CodeBadRequest,
		},
		{"bad booking id", http.MethodGet, "/bookings/not-a-uuid", nil, http.StatusBadRequest, response.CodeBadRequest},
		{"unknown booking", http.MethodGet, "/bookings/6f1c1c1e-8a5e-4a39-9d67-0a4f5f3f7b11", nil, http.StatusNotFound, response.CodeBookingNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, string(tt.code), errorCode(t, rec))
		})
	}
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
