package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"venue-panel/internal/domain"
)

const publishTimeout = 5 * time.Second

// publishClient is the part of paho.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher sends every bulk switch report to a topic so dashboards and
// lighting controllers can follow what the panel did.
type Publisher struct {
	client publishClient
	topic  string
	qos    byte
	logger *slog.Logger
}

func NewPublisher(client publishClient, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    1,
		logger: logger,
	}
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(broker, clientID string, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			logger.Info("mqtt connected", "broker", broker)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", broker, err)
	}
	return client, nil
}

func (p *Publisher) PublishReport(ctx context.Context, report *domain.BulkReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publishing report %s: timeout", report.OperationID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing report %s: %w", report.OperationID, err)
	}

	p.logger.Debug("report published", "topic", p.topic, "operation_id", report.OperationID)
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
