package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects other tooling can subscribe on.
const (
	SubjectCreated = "vps.created"
	SubjectState   = "vps.state"
)

// Event is the machine-readable payload published on every lifecycle change.
type Event struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	VPSID   string `json:"vps_id"`
	OwnerID string `json:"owner_id"`
	Status  string `json:"status,omitempty"`
	Time    int64  `json:"time"`
}

// Publisher pushes lifecycle events onto NATS. A nil *Publisher is a
// valid no-op so the daemon runs without a broker.
type Publisher struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("vps-bot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, log: log}, nil
}

// Publish sends one event, best effort. Failures are returned for the
// caller to log; they must never affect the lifecycle operation that
// produced the event.
func (p *Publisher) Publish(ctx context.Context, subject string, ev Event) error {
	if p == nil {
		return nil
	}
	if p.nc == nil || p.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	ev.EventID = uuid.NewString()
	ev.Time = time.Now().Unix()
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(subject, payload)
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
	p.nc.Close()
}
