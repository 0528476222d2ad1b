package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.WebhookRequest("ok")
	c.WebhookRequest("ok")
	c.WebhookRequest("unknown_action")
	c.DeviceCommand("getDevInfo", "ok", 20*time.Millisecond)
	c.HookSync("full", nil)
	c.HookSync("partial", errors.New("boom"))
	c.BrokerPublish(errors.New("not connected"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.webhookRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.webhookRequests.WithLabelValues("unknown_action")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deviceCommands.WithLabelValues("getDevInfo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.hookSyncs.WithLabelValues("full", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.hookSyncs.WithLabelValues("partial", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.brokerPublishes.WithLabelValues("error")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	live := 5
	c.TrackTokens(func() int { return live })
	c.WebhookRequest("ok")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "foscam2mqtt_hook_tokens_live 5")
	assert.Contains(t, string(body), `foscam2mqtt_webhook_requests_total{outcome="ok"} 1`)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.WebhookRequest("ok")
		c.DeviceCommand("x", "ok", time.Second)
		c.HookSync("full", nil)
		c.BrokerPublish(nil)
		c.TrackTokens(func() int { return 1 })
	})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
