// Package events publishes ledger lifecycle events to NATS. Each event
// goes out as JSON on a subject built from a configurable prefix and
// the event type, e.g. papertrader.order.filled, so downstream
// consumers can subscribe to a single event kind or the whole stream.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/openfolio/papertrader/internal/ledger"
)

// NATSConfig configures the event publisher.
type NATSConfig struct {
	URL    string
	Prefix string // subject prefix, default "papertrader."
	Name   string // connection name shown in NATS monitoring
}

// DefaultNATSConfig returns the default publisher configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:    nats.DefaultURL,
		Prefix: "papertrader.",
		Name:   "papertrader",
	}
}

// NATSPublisher implements ledger.Publisher over a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to NATS with infinite reconnects. Events
// published while disconnected return an error rather than queueing
// silently.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "papertrader."
	}
	if cfg.Name == "" {
		cfg.Name = "papertrader"
	}

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().
		Str("nats_url", cfg.URL).
		Str("prefix", cfg.Prefix).
		Msg("Event publisher initialized")

	return &NATSPublisher{nc: nc, prefix: cfg.Prefix}, nil
}

// Publish sends one event to its subject.
func (p *NATSPublisher) Publish(event ledger.Event) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("event publisher not connected")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.prefix + string(event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("type", string(event.Type)).
		Msg("Published event")
	return nil
}

// Flush blocks until buffered events reached the server.
func (p *NATSPublisher) Flush(timeout time.Duration) error {
	return p.nc.FlushTimeout(timeout)
}

// Close flushes buffered events and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
			log.Warn().Err(err).Msg("Flush on close failed")
		}
		p.nc.Close()
		log.Info().Msg("Event publisher closed")
	}
}
