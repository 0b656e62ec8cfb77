package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/semaphor/internal/logger"
)

// Publish timing and buffering limits.
const (
	connectWait = 10 * time.Second
	publishWait = 5 * time.Second
	outboxLimit = 100
)

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the broker is unreachable are held in an outbox and replayed in
// order on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *logger.Logger

	mu          sync.Mutex
	outbox      *outbox
	connected   bool
	everUp      bool
	onConnected func(bool)
}

// NewRealPublisher creates a publisher for the given broker. It does not
// fail when the broker is down: the client keeps retrying in the
// background and messages are buffered meanwhile. onConnected, if non-nil,
// is called on every connection state change.
func NewRealPublisher(broker, clientID string, log *logger.Logger, onConnected func(bool)) *RealPublisher {
	p := &RealPublisher{
		log:         log,
		outbox:      newOutbox(outboxLimit),
		onConnected: onConnected,
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(TopicSystem, string(willPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleLost(err) })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		log.Warnw("mqtt broker not reachable yet, buffering", "broker", broker)
	} else if err := token.Error(); err != nil {
		log.Warnw("mqtt connect failed, buffering", "broker", broker, "err", err)
	}
	return p
}

// newPublisher wraps an existing client. Used by tests.
func newPublisher(client paho.Client, log *logger.Logger) *RealPublisher {
	return &RealPublisher{
		client: client,
		log:    log,
		outbox: newOutbox(outboxLimit),
	}
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.everUp = true
	pending := p.outbox.take()
	cb := p.onConnected
	p.mu.Unlock()

	if cb != nil {
		cb(true)
	}
	p.log.Infow("mqtt connected", "replaying", len(pending), "reconnect", reconnect)

	for _, m := range pending {
		if err := p.send(m); err != nil {
			p.log.Warnw("mqtt replay failed", "kind", m.kind, "err", err)
		}
	}
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := p.send(outgoing{kind: "RECONNECTED", topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			p.log.Warnw("mqtt reconnect notice failed", "err", err)
		}
	}
}

func (p *RealPublisher) handleLost(err error) {
	p.mu.Lock()
	p.connected = false
	cb := p.onConnected
	p.mu.Unlock()

	if cb != nil {
		cb(false)
	}
	p.log.Warnw("mqtt connection lost", "err", err)
}

// enqueue sends m now, or holds it in the outbox when disconnected.
func (p *RealPublisher) enqueue(m outgoing) error {
	p.mu.Lock()
	if !p.connected {
		if kind, ok := p.outbox.add(m); ok {
			// Warn once per kind; later drops show in the backlog counts.
			if p.outbox.dropped[kind] == 1 {
				p.log.Warnw("mqtt outbox full, dropping", "kind", kind, "limit", outboxLimit)
			}
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m outgoing) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends an indicator event. QoS 0, not retained.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.enqueue(outgoing{kind: string(event.Type), topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event. QoS 1 so shutdown
// notices reach the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.enqueue(outgoing{kind: event.Event, topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Backlog reports what is waiting for a connection and what was dropped.
func (p *RealPublisher) Backlog() Backlog {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.backlog()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
