package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/13g7895123/crm-questionnaire-sub001/pkg/logger"
)

// TopicAuthEvents is the Kafka topic auth events are published to
const TopicAuthEvents = "auth.events"

// Event types emitted by the auth subsystem
const (
	EventLoginSucceeded = "auth.login.succeeded"
	EventLoginFailed    = "auth.login.failed"
	EventTokenRefreshed = "auth.token.refreshed"
	EventLoggedOut      = "auth.logged_out"
)

// Event is one auth audit record
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher emits auth audit events. Publishing is best-effort and must
// never block or fail the request being audited.
type Publisher interface {
	Publish(ctx context.Context, event *Event)
	Close()
}

// KafkaPublisher publishes events to Kafka via franz-go
type KafkaPublisher struct {
	client *kgo.Client
	log    *logger.Logger
}

// KafkaPublisherConfig holds Kafka producer settings
type KafkaPublisherConfig struct {
	Brokers  []string
	ClientID string
}

// NewKafkaPublisher creates a Kafka-backed publisher
func NewKafkaPublisher(cfg *KafkaPublisherConfig) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchMaxBytes(1 << 20),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		client: client,
		log:    logger.Get(),
	}, nil
}

// Publish produces the event asynchronously; delivery failures are logged
// and dropped
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("failed to marshal audit event", zap.Error(err))
		return
	}

	record := &kgo.Record{
		Topic: TopicAuthEvents,
		Key:   []byte(event.Username),
		Value: payload,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("failed to publish audit event",
				zap.String("type", event.Type),
				zap.Error(err),
			)
		}
	})
}

// Close flushes pending records and closes the client
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// NopPublisher discards all events; used when Kafka is disabled
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) {}
func (NopPublisher) Close()                          {}
