package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	emailExchange = "email_exchange"
)

// AMQPMailer publishes deliveries to a RabbitMQ exchange; a separate
// worker renders and sends the actual email.
type AMQPMailer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPMailer connects to RabbitMQ and declares the email exchange.
func NewAMQPMailer(url string) (*AMQPMailer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		emailExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare email exchange: %w", err)
	}

	return &AMQPMailer{conn: conn, channel: channel}, nil
}

func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal mail message: %w", err)
	}

	routingKey := "email." + msg.Type

	err = m.channel.PublishWithContext(
		ctx,
		emailExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish mail message: %w", err)
	}

	return nil
}

// Close releases the channel and connection.
func (m *AMQPMailer) Close() error {
	if err := m.channel.Close(); err != nil {
		m.conn.Close()
		return err
	}
	return m.conn.Close()
}
