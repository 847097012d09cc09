package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// AuditQueue is bound to every routing key of Exchange.
const AuditQueue = "fuchiball.audit"

// DeclareExchange declares the durable topic exchange.  Publisher and
// consumer both call it so either may start first.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
}

// StartAuditConsumer consumes every event and appends one line per event
// to <dir>/booking.log.  It reconnects with backoff until ctx is done.
func StartAuditConsumer(ctx context.Context, url, dir string) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("audit-consumer: dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir)
		_ = conn.Close()
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("audit-consumer: consume loop ended; reconnecting")
			if !sleep(ctx, 2*time.Second) {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("audit-consumer: set QoS failed")
	}
	if err := DeclareExchange(ch); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(AuditQueue, "#", Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := appendLine(dir, d.RoutingKey, d.Body); err != nil {
				log.WithError(err).WithField("key", d.RoutingKey).Error("audit-consumer: handle message failed")
				// Not requeued: a malformed body would loop forever.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func appendLine(dir, key string, body []byte) error {
	line, err := FormatLine(key, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders one event as a single human-readable log line ending
// in a newline.  Unknown keys are rejected.
func FormatLine(key string, body []byte) (string, error) {
	switch key {
	case KeyParticipationConfirmed, KeyParticipationCancelled:
		var ev ParticipationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", key, err)
		}
		verb := "Participation confirmed"
		if key == KeyParticipationCancelled {
			verb = "Participation cancelled"
		}
		return fmt.Sprintf("[%s] %s | participation_id=%s | match_id=%s | match=%q | starts_at=%s | user_id=%d | code=%s | source=%s | available_spots=%d\n",
			ev.At, verb, ev.ParticipationID, ev.MatchID, ev.MatchTitle, ev.StartsAt, ev.UserID, ev.Code, ev.Source, ev.AvailableSpots), nil
	case KeyBookingSubmitted:
		var ev BookingSubmittedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", key, err)
		}
		return fmt.Sprintf("[%s] Payment claim submitted | booking_id=%s | match_id=%s | match=%q | user_id=%d | yape_name=%q | yape_code=%s | proof=%t\n",
			ev.SubmittedAt, ev.BookingID, ev.MatchID, ev.MatchTitle, ev.UserID, ev.YapeName, ev.YapeCode, ev.HasProof), nil
	case KeyBookingReviewed:
		var ev BookingReviewedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", key, err)
		}
		line := fmt.Sprintf("[%s] Payment claim %s | booking_id=%s | match_id=%s | user_id=%d | reviewed_by=%d",
			ev.ReviewedAt, ev.Status, ev.BookingID, ev.MatchID, ev.UserID, ev.ReviewedBy)
		if ev.ParticipationID != "" {
			line += fmt.Sprintf(" | participation_id=%s | code=%s", ev.ParticipationID, ev.Code)
		}
		return line + "\n", nil
	default:
		return "", fmt.Errorf("unknown routing key %q", key)
	}
}
