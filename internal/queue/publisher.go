package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends booking lifecycle events to RabbitMQ. Publishing is
// fire-and-forget from the booking flow's perspective: errors are logged
// and returned, and callers are free to ignore them.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{
		url: url,
		log: log.With(zap.String("service", "queue_publisher")),
	}
}

// publish dials, declares the durable queue and sends one persistent JSON
// message. A connection per publish keeps the publisher stateless; event
// volume here is per-booking, not per-request.
func (p *Publisher) publish(ctx context.Context, queueName string, payload any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("RabbitMQ dial failed", zap.Error(err), zap.String("queue", queueName))
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("RabbitMQ channel open failed", zap.Error(err), zap.String("queue", queueName))
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		p.log.Warn("RabbitMQ queue declare failed", zap.Error(err), zap.String("queue", queueName))
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.Error(err), zap.String("queue", queueName))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		p.log.Warn("RabbitMQ publish failed", zap.Error(err), zap.String("queue", queueName))
		return err
	}

	return nil
}

func (p *Publisher) BookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	return p.publish(ctx, QueueBookingConfirmed, event)
}

func (p *Publisher) BookingCancelled(ctx context.Context, event BookingCancelledEvent) error {
	return p.publish(ctx, QueueBookingCancelled, event)
}

func (p *Publisher) BookingExpired(ctx context.Context, event BookingExpiredEvent) error {
	return p.publish(ctx, QueueBookingExpired, event)
}
