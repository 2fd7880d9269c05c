package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher forwards router diagnostic events to NATS JetStream under the
// routing.> subject space so downstream consumers (dashboards, alerting)
// can subscribe without coupling to the router process.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// Config holds NATS connection settings
type Config struct {
	URL      string
	ClientID string
	MaxAge   time.Duration
}

// NewPublisher connects to NATS and ensures the ROUTING stream exists
func NewPublisher(config Config) (*Publisher, error) {
	logger := logrus.WithField("component", "events-publisher")

	opts := []nats.Option{
		nats.Name(config.ClientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Errorf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	maxAge := config.MaxAge
	if maxAge == 0 {
		maxAge = 24 * time.Hour
	}

	streamConfig := &nats.StreamConfig{
		Name:      "ROUTING",
		Subjects:  []string{"routing.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	if _, err := js.StreamInfo("ROUTING"); err == nil {
		if _, err := js.UpdateStream(streamConfig); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to update stream ROUTING: %w", err)
		}
	} else {
		if _, err := js.AddStream(streamConfig); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream ROUTING: %w", err)
		}
	}

	return &Publisher{
		conn:   conn,
		js:     js,
		logger: logger,
	}, nil
}

// PublishRoutingEvent publishes under routing.{eventType} or
// routing.{eventType}.{venue} when a venue is set
func (p *Publisher) PublishRoutingEvent(eventType, venue string, payload interface{}) error {
	subject := fmt.Sprintf("routing.%s", eventType)
	if venue != "" {
		subject = fmt.Sprintf("routing.%s.%s", eventType, venue)
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(subject, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debugf("Published to %s", subject)
	return nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
