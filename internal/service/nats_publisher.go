package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// SubjectPrefix is prepended to routing keys to form NATS subjects.
const SubjectPrefix = "fuchiball."

// NATSPublisher publishes events as core NATS messages on
// "fuchiball.<routing key>".
type NATSPublisher struct {
	Conn *nats.Conn
}

// ConnectNATS dials url, authenticating with token when it is set.
func ConnectNATS(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("fuchiball-booking"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats: disconnected")
			}
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return nats.Connect(url, opts...)
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{Conn: nc}
}

func (p *NATSPublisher) Publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Error marshal %s event: %s", key, err)
		return err
	}
	if err := p.Conn.Publish(SubjectPrefix+key, payload); err != nil {
		log.Errorf("Error publishing %s: %s", key, err)
		return err
	}
	return nil
}
