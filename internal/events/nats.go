package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/logger"
	"github.com/nats-io/nats.go"
)

// Conn is the part of a NATS connection the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	conn   Conn
	prefix string
}

func NewNATSPublisher(conn Conn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: subjectPrefix}
}

// Connect dials the server with reconnects enabled; connection state changes are logged.
func Connect(url string, log *logger.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("padel-tournament"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
}

// Subject maps an event type to e.g. padel.match.updated.
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + strings.ToLower(strings.ReplaceAll(string(t), "_", "."))
}

func (p *NATSPublisher) Notify(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}
	return nil
}
