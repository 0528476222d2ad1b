package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foscam2mqtt"

// Collector owns a private registry and the bridge's collectors. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	webhookRequests *prometheus.CounterVec
	deviceCommands  *prometheus.CounterVec
	deviceLatency   *prometheus.HistogramVec
	hookSyncs       *prometheus.CounterVec
	brokerPublishes *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{registry: reg}

	c.webhookRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_requests_total",
		Help:      "Webhook requests by outcome (ok, missing_action, unknown_action)",
	}, []string{"outcome"})
	reg.MustRegister(c.webhookRequests)

	c.deviceCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "device_commands_total",
		Help:      "Camera CGI commands by command and outcome",
	}, []string{"command", "outcome"})
	reg.MustRegister(c.deviceCommands)

	c.deviceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "device_command_duration_seconds",
		Help:      "Latency of camera CGI commands",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	}, []string{"command"})
	reg.MustRegister(c.deviceLatency)

	c.hookSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_synchronizations_total",
		Help:      "Callback synchronizations by kind (full, partial) and outcome",
	}, []string{"kind", "outcome"})
	reg.MustRegister(c.hookSyncs)

	c.brokerPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broker_publishes_total",
		Help:      "MQTT publishes by outcome",
	}, []string{"outcome"})
	reg.MustRegister(c.brokerPublishes)

	return c
}

// TrackTokens exposes the number of live webhook tokens.
func (c *Collector) TrackTokens(count func() int) {
	if c == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hook_tokens_live",
		Help:      "Tokens currently accepted by the webhook",
	}, func() float64 { return float64(count()) }))
}

func (c *Collector) WebhookRequest(outcome string) {
	if c == nil {
		return
	}
	c.webhookRequests.WithLabelValues(outcome).Inc()
}

func (c *Collector) DeviceCommand(command, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.deviceCommands.WithLabelValues(command, outcome).Inc()
	c.deviceLatency.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (c *Collector) HookSync(kind string, err error) {
	if c == nil {
		return
	}
	c.hookSyncs.WithLabelValues(kind, outcome(err)).Inc()
}

func (c *Collector) BrokerPublish(err error) {
	if c == nil {
		return
	}
	c.brokerPublishes.WithLabelValues(outcome(err)).Inc()
}

// Handler serves the private registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
