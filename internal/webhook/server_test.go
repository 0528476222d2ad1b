package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"foscam2mqtt/internal/hooks"
	"foscam2mqtt/internal/models"
	"foscam2mqtt/internal/publisher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Message struct {
	Topic   string
	Retain  bool
	Payload string
}

// MockBroker captures messages for verification
type MockBroker struct {
	mu       sync.Mutex
	Messages []Message
}

func (m *MockBroker) Publish(topic string, _ byte, retain bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Message{Topic: topic, Retain: retain, Payload: string(payload)})
	return nil
}

func (m *MockBroker) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.Messages {
		out = append(out, msg.Topic)
	}
	return out
}

func (m *MockBroker) Find(topic string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			return msg, true
		}
	}
	return Message{}, false
}

type fakeCamera struct {
	err error
}

func (f *fakeCamera) Snapshot(context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("jpeg"), nil
}

// routerRotator reissues the token the way a successful synchronization does.
type routerRotator struct {
	router  *hooks.Router
	rotated []models.Action
}

func (r *routerRotator) Rotate(_ context.Context, action models.Action) error {
	r.rotated = append(r.rotated, action)
	r.router.Issue(action)
	return nil
}

type outcomeRecorder struct {
	outcomes []string
}

func (o *outcomeRecorder) WebhookRequest(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

const layout = "2006-01-02T15:04:05Z"

func newTestServer(router *hooks.Router, cam *fakeCamera, opts ...ServerOption) (http.Handler, *MockBroker) {
	broker := &MockBroker{}
	pub := publisher.New(broker, "foscam2mqtt", layout, nil)
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	return NewServer(router, cam, pub, opts...).Handler(), broker
}

func TestWebhook_PlainButton(t *testing.T) {
	router := hooks.NewRouter(false)
	rotator := &routerRotator{router: router}
	h, broker := newTestServer(router, &fakeCamera{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?action=button", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-05-06T07:08:09Z OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	action, ok := broker.Find("foscam2mqtt/action")
	require.True(t, ok)
	assert.Equal(t, "button", action.Payload)
	assert.False(t, action.Retain)

	at, ok := broker.Find("foscam2mqtt/button_datetime")
	require.True(t, ok)
	assert.Equal(t, "2024-05-06T07:08:09Z", at.Payload)
	assert.True(t, at.Retain)

	snap, ok := broker.Find("foscam2mqtt/snapshot")
	require.True(t, ok)
	assert.Equal(t, "jpeg", snap.Payload)

	assert.NotContains(t, broker.Topics(), "foscam2mqtt/button/trigger")
	assert.Empty(t, rotator.rotated)
}

func TestWebhook_StaleTokenAfterParanoidRotation(t *testing.T) {
	router := hooks.NewRouter(true)
	token := router.Issue(models.ActionMotion)
	rotator := &routerRotator{router: router}
	rec := &outcomeRecorder{}
	h, broker := newTestServer(router, &fakeCamera{}, WithParanoidRotation(rotator), WithMetrics(nil, rec))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/?action="+url.QueryEscape(token), nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, []models.Action{models.ActionMotion}, rotator.rotated)

	published := len(broker.Topics())

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/?action="+url.QueryEscape(token), nil))
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "2024-05-06T07:08:09Z ERROR - unknown action", second.Body.String())
	assert.Len(t, broker.Topics(), published, "rejected request publishes nothing")
	assert.Len(t, rotator.rotated, 1)

	assert.Equal(t, []string{outcomeOK, outcomeUnknownAction}, rec.outcomes)
}

func TestWebhook_ObfuscatedRejectsActionName(t *testing.T) {
	router := hooks.NewRouter(true)
	router.Issue(models.ActionButton)
	h, broker := newTestServer(router, &fakeCamera{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?action=button", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, broker.Messages)
}

func TestWebhook_MissingAction(t *testing.T) {
	h, broker := newTestServer(hooks.NewRouter(false), &fakeCamera{})

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/", nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "2024-05-06T07:08:09Z ERROR - no action specified", rec.Body.String())
		})
	}
	assert.Empty(t, broker.Messages)
}

func TestWebhook_ActionFromBody(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
	}{
		{name: "Form Post", method: http.MethodPost, contentType: "application/x-www-form-urlencoded", body: "action=sound"},
		{name: "Form Put", method: http.MethodPut, contentType: "application/x-www-form-urlencoded", body: "action=sound"},
		{name: "JSON", method: http.MethodPost, contentType: "application/json; charset=utf-8", body: `{"action":"sound"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, broker := newTestServer(hooks.NewRouter(false), &fakeCamera{})

			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			msg, ok := broker.Find("foscam2mqtt/action")
			require.True(t, ok)
			assert.Equal(t, "sound", msg.Payload)
		})
	}
}

func TestWebhook_SnapshotFailureIsNotFatal(t *testing.T) {
	h, broker := newTestServer(hooks.NewRouter(false), &fakeCamera{err: errors.New("timeout")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?action=face", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, broker.Topics(), "foscam2mqtt/snapshot")
	assert.Contains(t, broker.Topics(), "foscam2mqtt/face_datetime")
}

func TestWebhook_TriggerPayload(t *testing.T) {
	h, broker := newTestServer(hooks.NewRouter(false), &fakeCamera{}, WithTriggerPayload("1"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?action=human", nil))

	msg, ok := broker.Find("foscam2mqtt/human/trigger")
	require.True(t, ok)
	assert.Equal(t, "1", msg.Payload)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	h, _ := newTestServer(hooks.NewRouter(false), &fakeCamera{}, WithMetrics(metrics, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())
}
