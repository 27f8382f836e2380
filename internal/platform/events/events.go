package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectPayslipsGenerated = "payroll.payslips.generated"
	SubjectPayslipsSent      = "payroll.payslips.sent"
	SubjectPeriodsClosed     = "payroll.periods.closed"
)

type Event struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenantId"`
	ActorID    string    `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Publisher announces completed payroll operations to other services.
// Publishing is best effort; a failure never undoes the operation.
type Publisher interface {
	Publish(ctx context.Context, subject string, evt Event) error
	Close()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, Event) error { return nil }
func (noopPublisher) Close()                                       {}

func Noop() Publisher { return noopPublisher{} }

type natsPublisher struct {
	conn *nats.Conn
}

// Connect returns a NATS publisher, or a no-op publisher when url is empty.
func Connect(url string) (Publisher, error) {
	if url == "" {
		return noopPublisher{}, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("payrolladmin"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "err", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &natsPublisher{conn: conn}, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := Encode(evt)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, payload)
}

func (p *natsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func Encode(evt Event) ([]byte, error) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(evt)
}

// PublishBestEffort logs instead of returning publish failures.
func PublishBestEffort(ctx context.Context, p Publisher, subject string, evt Event) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), subject, evt); err != nil {
		slog.Warn("event publish failed", "subject", subject, "tenantId", evt.TenantID, "err", err)
	}
}
