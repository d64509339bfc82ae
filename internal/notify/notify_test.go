package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent(t EventType) Event {
	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	b := &model.Booking{
		ID:           uuid.New(),
		MentorID:     "mentor-1",
		RequesterID:  "student-1",
		Interval:     interval.New(start, start.Add(90*time.Minute)),
		Status:       model.BookingStatusCancelled,
		CancelReason: model.CancelReasonExpired,
	}
	return NewEvent(t, b, start)
}

func TestBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus(zap.NewNop())
	events, unsubscribe := bus.Subscribe(1)

	event := testEvent(EventBookingConfirmed)
	require.NoError(t, bus.Publish(context.Background(), event))
	assert.Equal(t, event, <-events)

	// Буфер полон: событие отбрасывается, Publish не блокируется
	require.NoError(t, bus.Publish(context.Background(), event))
	require.NoError(t, bus.Publish(context.Background(), event))

	unsubscribe()
	unsubscribe()
	_, ok := <-events
	assert.True(t, ok, "buffered event is still readable")
	_, ok = <-events
	assert.False(t, ok)
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("boom")
}

func TestMulti_ContinuesAfterError(t *testing.T) {
	t.Parallel()

	bus := NewBus(zap.NewNop())
	events, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	failing := &failingPublisher{}
	err := Multi{failing, nil, bus}.Publish(context.Background(), testEvent(EventBookingRequested))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, events, 1)
}

func TestEvent_Recipients(t *testing.T) {
	t.Parallel()

	event := testEvent(EventBookingConfirmed)
	assert.Equal(t, []string{"mentor-1", "student-1"}, event.Recipients())

	event.RequesterID = event.MentorID
	assert.Equal(t, []string{"mentor-1"}, event.Recipients())
}

type recordingSender struct {
	params []*bot.SendMessageParams
}

func (s *recordingSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.params = append(s.params, params)
	return &models.Message{}, nil
}

func TestTelegram_Publish(t *testing.T) {
	t.Parallel()

	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	sender := &recordingSender{}
	tg := NewTelegram(sender, 42, moscow, zap.NewNop())

	event := testEvent(EventBookingCancelled)
	require.NoError(t, tg.Publish(context.Background(), event))

	require.Len(t, sender.params, 1)
	msg := sender.params[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, models.ParseModeHTML, msg.ParseMode)

	text := msg.Text
	assert.Contains(t, text, "Бронирование отменено")
	assert.Contains(t, text, "02.03.2026, 21:00–22:30 (1 ч 30 мин)")
	assert.Contains(t, text, "не оплачено вовремя")
	assert.Contains(t, text, event.BookingID.String())
}

func TestFormatEvent_EscapesIDs(t *testing.T) {
	t.Parallel()

	event := testEvent(EventBookingRequested)
	event.MentorID = "<script>"

	text := FormatEvent(event, time.UTC)
	assert.Contains(t, text, "&lt;script&gt;")
	assert.NotContains(t, text, "Причина")
}

func TestHub_DeliversToRecipients(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("user_id"))
	}))
	defer srv.Close()

	dial := func(userID string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=" + userID
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	student := dial("student-1")
	stranger := dial("someone-else")

	require.Eventually(t, func() bool {
		return hub.Connections("student-1") == 1 && hub.Connections("someone-else") == 1
	}, time.Second, 10*time.Millisecond)

	event := testEvent(EventBookingConfirmed)
	require.NoError(t, hub.Publish(context.Background(), event))

	require.NoError(t, student.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := student.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, event.BookingID, got.BookingID)
	assert.Equal(t, EventBookingConfirmed, got.Type)

	require.NoError(t, stranger.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = stranger.ReadMessage()
	assert.Error(t, err, "event must not reach other users")
}
