package publisher

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"
)

// Broker to decouple the publisher from the mqtt implementation
type Broker interface {
	Publish(topic string, qos byte, retain bool, payload []byte) error
}

// PublishRecorder is told about every publish attempt.
type PublishRecorder interface {
	BrokerPublish(err error)
}

type Options struct {
	QoS    byte
	Retain bool
}

var (
	// Retained is used for state mirrors.
	Retained = Options{QoS: 0, Retain: true}
	// Transient is used for one-shot event signals.
	Transient = Options{QoS: 0, Retain: false}
	// Availability is used for the $state liveness flag.
	Availability = Options{QoS: 2, Retain: true}
)

const StateTopic = "$state"

type Publisher struct {
	broker     Broker
	root       string
	dateLayout string
	recorder   PublishRecorder
}

func New(broker Broker, root, dateLayout string, recorder PublishRecorder) *Publisher {
	return &Publisher{
		broker:     broker,
		root:       root,
		dateLayout: dateLayout,
		recorder:   recorder,
	}
}

// Topic namespaces a suffix under the configured root.
func (p *Publisher) Topic(suffix string) string {
	return p.root + "/" + suffix
}

func (p *Publisher) Timestamp(t time.Time) string {
	return t.Format(p.dateLayout)
}

// Publish sends one message. Failures are logged and reported, never fatal.
func (p *Publisher) Publish(suffix string, payload interface{}, opts Options) error {
	return p.publishRaw(p.Topic(suffix), payload, opts)
}

func (p *Publisher) publishRaw(topic string, payload interface{}, opts Options) error {
	data, err := encodePayload(payload)
	if err != nil {
		logger.Errorf("Failed to encode payload for %s: %v", topic, err)
		return err
	}

	err = p.broker.Publish(topic, opts.QoS, opts.Retain, data)
	if p.recorder != nil {
		p.recorder.BrokerPublish(err)
	}
	if err != nil {
		logger.Warnf("Error publishing to %s: %v", topic, err)
		return err
	}
	logger.Debugf("Published payload %s to topic %s", describePayload(payload), topic)
	return nil
}

// PublishAvailability sets the retained liveness flag.
func (p *Publisher) PublishAvailability(online bool) error {
	return p.Publish(StateTopic, online, Availability)
}

// PublishAction announces a verified webhook trigger. triggerPayload is only
// sent when non-empty (Home Assistant device triggers).
func (p *Publisher) PublishAction(action models.Action, at time.Time, triggerPayload string) {
	_ = p.Publish("action", string(action), Transient)
	_ = p.Publish(string(action)+"_datetime", p.Timestamp(at), Retained)
	if triggerPayload != "" {
		_ = p.Publish(string(action)+"/trigger", triggerPayload, Transient)
	}
}

// PublishSnapshot publishes a camera frame and its capture time.
func (p *Publisher) PublishSnapshot(image []byte, at time.Time) {
	_ = p.Publish("snapshot", image, Retained)
	_ = p.Publish("snapshot/datetime", p.Timestamp(at), Retained)
}

// NewTriggerPayload returns the payload used for device triggers: "1" in
// plain mode, a short random string otherwise.
func NewTriggerPayload(obfuscated bool) string {
	if !obfuscated {
		return "1"
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case int:
		return []byte(strconv.Itoa(v)), nil
	case bool:
		if v {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		return data, nil
	}
}

func describePayload(payload interface{}) string {
	switch v := payload.(type) {
	case []byte:
		return fmt.Sprintf("of %d bytes", len(v))
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("of type %T", v)
	}
}
