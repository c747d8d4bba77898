package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/logger"
)

const (
	// queueSize is how many transitions may wait for the broker.
	queueSize = 32
	// qos is at-least-once delivery.
	qos = 1
	// connectTimeout bounds one broker connect attempt.
	connectTimeout = 5 * time.Second
	// connectRetries is how many extra connect attempts are made.
	connectRetries = 4
	// maxConnectElapsed bounds all connect attempts together.
	maxConnectElapsed = 30 * time.Second
	// publishTimeout bounds waiting for a publish acknowledgement.
	publishTimeout = 5 * time.Second
	// disconnectQuiesce is the grace period in milliseconds for in-flight work.
	disconnectQuiesce = 250
	// breakerFailures opens the breaker after this many failures in a row.
	breakerFailures = 3
	// breakerCooldown is how long the breaker stays open.
	breakerCooldown = 30 * time.Second
)

var (
	errConnectTimeout = errors.New("mqtt connect timed out")
	errPublishTimeout = errors.New("mqtt publish timed out")
)

// publishClient is the part of mqtt.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// Publisher sends alert transitions to one MQTT topic.
type Publisher struct {
	// client is the broker connection.
	client publishClient
	// disconnect closes client, nil when the caller owns it.
	disconnect func()
	// topic receives every transition.
	topic string
	// events queues transitions for Run.
	events chan alert.Transition
	// breaker stops publishing while the broker keeps failing.
	breaker *gobreaker.CircuitBreaker
}

// Connect dials the broker with exponential backoff and returns a Publisher
// that owns the connection.
func Connect(ctx context.Context, settings *config.MQTT) (*Publisher, error) {
	ctx = logger.WithName(ctx, "notify")

	opts := mqtt.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(settings.ClientID).
		SetUsername(settings.Username).
		SetPassword(settings.Password).
		SetCleanSession(true).
		SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxConnectElapsed

	var client mqtt.Client

	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)

		if err := connectOnce(client, connectTimeout); err != nil {
			logger.WarnKV(ctx, "MQTT connect failed", "broker", settings.Broker, "error", err)

			return err
		}

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", settings.Broker, err)
	}

	logger.InfoKV(ctx, "Connected to MQTT broker", "broker", settings.Broker, "topic", settings.Topic)

	return NewPublisher(client, settings.Topic, func() { client.Disconnect(disconnectQuiesce) }), nil
}

// connectClient is the part of mqtt.Client a connect attempt uses.
type connectClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
}

// connectOnce makes one connect attempt. An attempt that does not finish in
// timeout is disconnected, so a late connect cannot take over the client ID.
func connectOnce(client connectClient, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)

		return errConnectTimeout
	}

	return token.Error()
}

// NewPublisher creates a Publisher over an existing client.
// disconnect is called by Close and may be nil.
func NewPublisher(client publishClient, topic string, disconnect func()) *Publisher {
	return &Publisher{
		client:     client,
		disconnect: disconnect,
		topic:      topic,
		events:     make(chan alert.Transition, queueSize),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-publish",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
		}),
	}
}

// AlertChanged queues the transition without blocking. It is dropped when
// the queue is full.
func (p *Publisher) AlertChanged(ctx context.Context, t alert.Transition) {
	select {
	case p.events <- t:
	default:
		logger.WarnKV(ctx, "Notifier queue full, dropping transition", "to", t.To)
	}
}

// Run publishes queued transitions until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "notify")

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.events:
			if err := p.publish(t); err != nil {
				logger.ErrorKV(ctx, "Publish alert transition failed", "to", t.To, "error", err)

				continue
			}

			logger.DebugKV(ctx, "Alert transition published", "topic", p.topic, "to", t.To)
		}
	}
}

// Close disconnects from the broker if the publisher owns the connection.
func (p *Publisher) Close() {
	if p.disconnect != nil {
		p.disconnect()
	}
}

// publish sends one transition through the breaker.
func (p *Publisher) publish(t alert.Transition) error {
	payload, err := Payload(t)
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (any, error) {
		token := p.client.Publish(p.topic, qos, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return nil, errPublishTimeout
		}

		return nil, token.Error()
	})

	return err
}

// Payload encodes a transition as protobuf JSON.
func Payload(t alert.Transition) ([]byte, error) {
	message, err := structpb.NewStruct(map[string]any{
		"from":             t.From.String(),
		"to":               t.To.String(),
		"moisture_percent": float64(t.Moisture),
		"at":               t.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	data, err := protojson.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return data, nil
}
