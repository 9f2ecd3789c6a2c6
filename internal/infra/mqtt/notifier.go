package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"home-setup/internal/domain"
)

// Publisher is the part of a paho client the notifier uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Event is the message published when a setup completes.
type Event struct {
	domain.SetupCompleted
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Notifier publishes setup events to the platform broker.
type Notifier struct {
	client  Publisher
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewNotifier(client Publisher, topic string, logger *slog.Logger) *Notifier {
	return &Notifier{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Connect dials the broker with reconnects enabled.
func Connect(broker, clientID string, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("connected to MQTT broker", "broker", broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) {
		// Still dialing; paho keeps retrying in the background.
		return client, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", broker, err)
	}
	return client, nil
}

func (n *Notifier) Notify(ctx context.Context, setup domain.SetupCompleted) error {
	payload, err := json.Marshal(Event{
		SetupCompleted: setup,
		Message:        setup.Summary(),
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	token := n.client.Publish(n.topic, 1, false, payload)

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publishing to %s: timed out", n.topic)
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", n.topic, err)
	}
	n.logger.Debug("published setup event", "topic", n.topic, "user_id", setup.UserID)
	return nil
}
