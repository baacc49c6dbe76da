package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type reportEvent struct {
	Date     string `json:"date"`
	Report   string `json:"report"`
	Added    int    `json:"added"`
	Removed  int    `json:"removed"`
	Retained int    `json:"retained"`
}

// AMQP publishes each report as a persistent JSON message on a durable queue
type AMQP struct {
	url   string
	queue string
}

func NewAMQP(url, queue string) *AMQP {
	return &AMQP{url: url, queue: queue}
}

func (a *AMQP) Name() string {
	return "amqp"
}

func (a *AMQP) Deliver(ctx context.Context, msg Message) error {
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare failed: %w", err)
	}

	body, err := json.Marshal(reportEvent{
		Date:     msg.Date,
		Report:   msg.Text,
		Added:    msg.Summary.Added,
		Removed:  msg.Summary.Removed,
		Retained: msg.Summary.Retained,
	})
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	// Default exchange, routing key is the queue name
	if err := ch.PublishWithContext(ctx, "", a.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	return nil
}
