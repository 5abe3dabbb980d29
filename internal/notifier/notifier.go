// Package notifier publishes membership-change events to the real-time
// collaborator over RabbitMQ. Publishing is best effort: errors are logged
// and swallowed so notifier unavailability can never affect a booking
// mutation that already committed.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/trailhead/tour-booking-backend/internal/config"
)

// Membership event names announced on the tour topic.
const (
	EventMembershipConfirmed = "membership-confirmed"
	EventMembershipRemoved   = "membership-removed"
)

// MembershipEvent is the payload announced when a user's participation status
// in a tour changes.
type MembershipEvent struct {
	TourID int64  `json:"tour_id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// Notifier announces membership events. Implementations must be safe for
// concurrent use and must never block the caller beyond the publish timeout.
type Notifier interface {
	PublishMembership(ctx context.Context, event string, payload MembershipEvent)
	Close() error
}

// AMQPNotifier publishes events to a topic exchange; the routing key is
// "tour.<tour_id>" so consumers can subscribe per tour.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logrus.Logger
}

// NewAMQPNotifier dials the broker and declares the topic exchange.
func NewAMQPNotifier(cfg config.NotifierConfig, logger *logrus.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPNotifier{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

// PublishMembership announces a membership event for a tour. Failures are
// logged, never returned.
func (n *AMQPNotifier) PublishMembership(ctx context.Context, event string, payload MembershipEvent) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).Warn("Failed to marshal membership event")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(pubCtx,
		n.exchange,
		fmt.Sprintf("tour.%d", payload.TourID),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         event,
			Body:         body,
		},
	)
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"event":   event,
			"tour_id": payload.TourID,
			"user_id": payload.UserID,
		}).Warn("Failed to publish membership event")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"event":   event,
		"tour_id": payload.TourID,
		"user_id": payload.UserID,
	}).Debug("Membership event published")
}

// Close shuts down the channel and the connection.
func (n *AMQPNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}

// NopNotifier is used when no broker is configured.
type NopNotifier struct{}

// PublishMembership discards the event.
func (NopNotifier) PublishMembership(context.Context, string, MembershipEvent) {}

// Close is a no-op.
func (NopNotifier) Close() error { return nil }
