package mqtt

import (
	"context"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/carpi-telemetry/internal/notify"
)

const (
	connectTimeout = 10 * time.Second
	systemTimeout  = 5 * time.Second
	retryInterval  = 5 * time.Second
	disconnectMs   = 1000
)

// RealPublisher is a paho client publishing alerts and lifecycle events.
type RealPublisher struct {
	client paho.Client
}

// NewRealPublisher connects to broker as clientID. The client reconnects
// on its own after the initial connection succeeds.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out after %v", broker, connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return &RealPublisher{client: client}, nil
}

// Notify publishes a at QoS 1 and waits for the broker or ctx.
func (p *RealPublisher) Notify(ctx context.Context, a notify.Alert) error {
	payload, err := FormatPayload(a)
	if err != nil {
		return fmt.Errorf("format alert: %w", err)
	}

	tok := p.client.Publish(Topic, 1, false, payload)
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish alert: %w", ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// PublishSystem sends a lifecycle event, retained so late subscribers see
// whether the collector is up.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format %s event: %w", event.Event, err)
	}

	tok := p.client.Publish(TopicSystem, 1, true, payload)
	if !tok.WaitTimeout(systemTimeout) {
		return fmt.Errorf("publish %s event: timed out", event.Event)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Event, err)
	}
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects, giving in-flight messages a second to complete.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(disconnectMs)
	return nil
}
