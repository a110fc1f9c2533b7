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

	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

// DefaultAuditLog is where the audit consumer appends events.
var DefaultAuditLog = filepath.Join("logs", "booking.log")

// AuditConsumer reads booking.events and appends one line per event to a
// log file.
type AuditConsumer struct {
	URL     string
	LogPath string
}

// Run connects to RabbitMQ and consumes until ctx is done.  Dial failures
// are retried with exponential backoff capped at 30s.
func (c AuditConsumer) Run(ctx context.Context) error {
	if c.LogPath == "" {
		c.LogPath = DefaultAuditLog
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warnf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warnf("audit-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warnf("audit-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, QueueName, "audit", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logger.Infof("audit-consumer: consuming %s into %s", QueueName, c.LogPath)

	for d := range msgs {
		if err := AppendEvent(c.LogPath, d.Body); err != nil {
			logger.Error("audit-consumer: handle message failed", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// FormatLine renders ev as a single audit line.
func FormatLine(ev BookingEvent) string {
	line := fmt.Sprintf("[%s] %s | booking_id=%d | customer_id=%d | actor_id=%d | service=%q",
		ev.OccurredAt, ev.Type, ev.BookingID, ev.CustomerID, ev.ActorID, ev.ServiceName)
	if ev.FromStatus != "" {
		line += " | from=" + ev.FromStatus
	}
	line += " | to=" + ev.ToStatus
	if ev.Amount > 0 {
		line += fmt.Sprintf(" | amount=%.2f", ev.Amount)
	}
	return line + "\n"
}

// AppendEvent decodes body and appends its line to path.
func AppendEvent(path string, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
