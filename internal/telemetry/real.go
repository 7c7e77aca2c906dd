package telemetry

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/andon-agent/internal/config"
	"github.com/sweeney/andon-agent/internal/delivery"
	"github.com/sweeney/andon-agent/internal/logging"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	queueMax       = 256
)

// RealPublisher talks to an actual MQTT broker. While the broker is
// unreachable, outgoing messages land in a bounded queue and are replayed in
// order once the paho client reconnects.
type RealPublisher struct {
	client      paho.Client
	systemTopic string
	eventsTopic string
	log         *logging.Logger

	mu    sync.Mutex
	queue *sendQueue
}

// NewRealPublisher connects to the configured broker and returns a publisher
// bound to the device's topics. Connection failure within the timeout is an
// error; the caller decides whether to run without the mirror.
func NewRealPublisher(cfg config.TelemetryConfig, device string, log *logging.Logger) (*RealPublisher, error) {
	p := &RealPublisher{
		systemTopic: SystemTopic(device),
		eventsTopic: EventsTopic(device),
		log:         log.With("component", "telemetry"),
		queue:       newSendQueue(queueMax),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.replay() })
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("broker connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker connect: %w", err)
	}

	return p, nil
}

// Publish mirrors a collector event to the events topic. Mirrored
// transitions ride QoS 0; losing one is acceptable, delaying delivery is not.
func (p *RealPublisher) Publish(event delivery.Event) error {
	payload, err := delivery.Payload(event)
	if err != nil {
		return fmt.Errorf("render event: %w", err)
	}

	return p.send(p.eventsTopic, 0, false, payload)
}

// PublishSystem sends a lifecycle event to the system topic at QoS 1.
// Operators key dashboards off these, so they get at-least-once.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("render system event: %w", err)
	}

	return p.send(p.systemTopic, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker, allowing up to a second for in-flight
// messages to flush.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.enqueue(outMsg{topic: topic, qos: qos, retained: retained, payload: payload})
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

func (p *RealPublisher) enqueue(m outMsg) {
	p.mu.Lock()
	evicted := p.queue.add(m)
	queued := p.queue.size()
	p.mu.Unlock()

	if evicted {
		p.log.Warn("telemetry queue full, dropped oldest message", "capacity", queueMax)
		return
	}
	p.log.Debug("broker unreachable, queued message", "queued", queued)
}

// replay flushes messages queued while the broker was unreachable.
// Runs on the paho connect callback goroutine.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.queue.takeAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}

	p.log.Info("broker reconnected, replaying queued messages", "count", len(msgs))
	for i, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			p.mu.Lock()
			for _, rest := range msgs[i:] {
				p.queue.add(rest)
			}
			p.mu.Unlock()
			p.log.Warn("replay interrupted, re-queued remaining messages", "remaining", len(msgs)-i)
			return
		}
	}
}
