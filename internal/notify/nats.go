package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/signalnine/ipaugur/internal/protocol"
)

const connectTimeout = 10 * time.Second

// Envelope is the message published for each completed analysis
type Envelope struct {
	InvocationID string          `json:"invocation_id"`
	Bucket       string          `json:"bucket"`
	Key          string          `json:"key"`
	Findings     protocol.Report `json:"findings"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Conn is the subset of *nats.Conn the publisher needs
type Conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// Publisher sends finished reports to a NATS subject
type Publisher struct {
	conn    Conn
	subject string
}

// Connect dials NATS and returns a publisher on subject
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("ipaugur"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewPublisher(conn, subject), nil
}

// NewPublisher wraps an existing connection
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Publish sends the envelope and waits for the server to acknowledge the flush
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("subject", p.subject).
		Int("findings", len(env.Findings)).
		Msg("Report published")
	return nil
}

// Close closes the underlying connection
func (p *Publisher) Close() {
	p.conn.Close()
}
