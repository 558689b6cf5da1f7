package realtime

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// ConnectNATS dials the broker and keeps reconnecting for the life of the process.
func ConnectNATS(url string, logger logrus.FieldLogger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("crowdwatch"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NATSRelay publishes events on a subject and forwards everything received on
// it to the local hub, so every instance's clients see every change.
type NATSRelay struct {
	conn    *nats.Conn
	subject string
	local   Broadcaster
	logger  logrus.FieldLogger
	sub     *nats.Subscription
}

func NewNATSRelay(conn *nats.Conn, subject string, local Broadcaster, logger logrus.FieldLogger) *NATSRelay {
	return &NATSRelay{conn: conn, subject: subject, local: local, logger: logger}
}

func (r *NATSRelay) Publish(ctx context.Context, e Event) error {
	frame, err := Encode(e)
	if err != nil {
		return err
	}
	if err := r.conn.Publish(r.subject, frame); err != nil {
		return fmt.Errorf("publish %s: %w", r.subject, err)
	}
	return nil
}

func (r *NATSRelay) Start() error {
	sub, err := r.conn.Subscribe(r.subject, func(m *nats.Msg) {
		r.local.Broadcast(m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	r.sub = sub
	r.logger.WithField("subject", r.subject).Info("nats relay started")
	return nil
}

func (r *NATSRelay) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}
