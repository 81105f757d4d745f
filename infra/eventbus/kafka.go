package eventbus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/eventbus"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const defaultTopicPrefix = "giftfund.custodial"

// KafkaEventBus publishes each event type to its own topic
// (<prefix>.<type>) and consumes it with one reader per registered type.
// Messages whose handler fails are copied to <prefix>.dlq.<type>.
type KafkaEventBus struct {
	brokers       []string
	group         string
	prefix        string
	writer        *kafka.Writer
	dialer        *kafka.Dialer
	typeFactories map[string]func() eventbus.Event
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	readers map[string]*kafka.Reader
	topics  map[string]struct{}
}

// NewWithKafka dials the first broker before returning so a misconfigured
// cluster fails at startup.
func NewWithKafka(
	cfg *config.Kafka,
	group string,
	types map[string]func() eventbus.Event,
	logger *slog.Logger,
) (*KafkaEventBus, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kafka event bus: configuration is required")
	}
	brokers := parseBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	if group == "" {
		group = "giftfund"
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer, transport, err := newKafkaDialer(cfg)
	if err != nil {
		return nil, err
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
	}
	if transport != nil {
		writer.Transport = transport
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &KafkaEventBus{
		brokers:       brokers,
		group:         group,
		prefix:        cfg.TopicPrefix,
		writer:        writer,
		dialer:        dialer,
		typeFactories: types,
		logger:        logger.With("component", "kafka-event-bus"),
		ctx:           ctx,
		cancel:        cancel,
		readers:       make(map[string]*kafka.Reader),
		topics:        make(map[string]struct{}),
	}

	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("kafka event bus: connection failed: %w", err)
	}
	_ = conn.Close()

	bus.logger.Info("🚀 Kafka event bus initialized",
		"group_id", group,
		"brokers", brokers,
		"tls_enabled", dialer.TLS != nil,
		"sasl_enabled", dialer.SASLMechanism != nil,
	)
	return bus, nil
}

// Close stops every consumer and flushes the writer.
func (b *KafkaEventBus) Close() error {
	if b == nil {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	if b.writer != nil {
		return b.writer.Close()
	}
	return nil
}

// Emit publishes event to its type topic, keyed by type.
func (b *KafkaEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	if b == nil || b.writer == nil {
		return fmt.Errorf("kafka event bus: writer not initialized")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: marshal failed: %w", err)
	}
	envBytes, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return fmt.Errorf("kafka event bus: envelope marshal failed: %w", err)
	}

	topic := topicNameFor(b.prefix, event.Type())
	if err := b.ensureTopic(ctx, topic); err != nil {
		return err
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.Type()),
		Value: envBytes,
		Time:  time.Now(),
	}); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type())
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	b.logger.Debug("event emitted", "type", event.Type(), "topic", topic)
	return nil
}

// Register starts a reader for eventType on first registration. Later
// registrations for the same type are ignored.
func (b *KafkaEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.readers[eventType]; exists {
		b.logger.Warn("handler already registered for event type", "event_type", eventType)
		return
	}

	topic := topicNameFor(b.prefix, eventType)
	if err := b.ensureTopicLocked(b.ctx, topic); err != nil {
		b.logger.Error("kafka ensure topic error", "error", err, "event_type", eventType)
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.group + "." + eventType,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      b.dialer,
	})
	b.readers[eventType] = reader
	b.logger.Info("registering handler", "event_type", eventType, "topic", topic)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(b.ctx, eventType, reader, handler)
	}()
}

func (b *KafkaEventBus) consume(ctx context.Context, eventType string, reader *kafka.Reader, handler eventbus.HandlerFunc) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error("kafka consume error", "error", err, "event_type", eventType)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		commit, procErr := b.process(ctx, eventType, msg, handler)
		if !commit {
			b.logger.Error("kafka message processing failed, will retry",
				"error", procErr, "topic", msg.Topic, "offset", msg.Offset)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			b.logger.Error("kafka commit error", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process reports whether msg may be committed. Undecodable messages are
// committed and dropped; a failed handler commits only once the message
// reached the DLQ topic.
func (b *KafkaEventBus) process(
	ctx context.Context,
	eventType string,
	msg kafka.Message,
	handler eventbus.HandlerFunc,
) (bool, error) {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		b.logger.Error("failed to unmarshal envelope", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		return true, nil
	}
	if env.Type != eventType {
		b.logger.Warn("envelope type mismatch for topic", "expected", eventType, "actual", env.Type)
		return true, nil
	}
	constructor, ok := b.typeFactories[env.Type]
	if !ok {
		b.logger.Error("unknown event type", "event_type", env.Type, "offset", msg.Offset)
		return true, nil
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		b.logger.Error("failed to unmarshal payload", "error", err, "event_type", env.Type)
		return true, nil
	}

	if err := runHandler(ctx, handler, evt); err != nil {
		b.logger.Error("handler error", "error", err, "event_type", env.Type, "offset", msg.Offset)
		if dlqErr := b.publishToDLQ(ctx, eventType, msg.Value); dlqErr != nil {
			return false, dlqErr
		}
	}
	return true, nil
}

func runHandler(ctx context.Context, handler eventbus.HandlerFunc, evt eventbus.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, evt)
}

func (b *KafkaEventBus) publishToDLQ(ctx context.Context, eventType string, raw []byte) error {
	if b.writer == nil {
		return fmt.Errorf("kafka event bus: writer not initialized")
	}
	topic := dlqTopicNameFor(b.prefix, eventType)
	if err := b.ensureTopic(ctx, topic); err != nil {
		return err
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(eventType),
		Value: raw,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("kafka event bus: dlq publish failed: %w", err)
	}
	b.logger.Warn("event pushed to DLQ", "event_type", eventType, "dlq_topic", topic)
	return nil
}

func (b *KafkaEventBus) ensureTopic(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureTopicLocked(ctx, topic)
}

// ensureTopicLocked requires b.mu.
func (b *KafkaEventBus) ensureTopicLocked(ctx context.Context, topic string) error {
	if _, exists := b.topics[topic]; exists {
		return nil
	}
	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka event bus: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka event bus: create topic failed: %w", err)
	}
	b.topics[topic] = struct{}{}
	return nil
}

func newKafkaDialer(cfg *config.Kafka) (*kafka.Dialer, *kafka.Transport, error) {
	tlsConfig, err := buildKafkaTLSConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	mechanism, err := buildKafkaSASLMechanism(cfg)
	if err != nil {
		return nil, nil, err
	}
	dialer := &kafka.Dialer{
		Timeout:       5 * time.Second,
		TLS:           tlsConfig,
		SASLMechanism: mechanism,
	}
	if tlsConfig == nil && mechanism == nil {
		return dialer, nil, nil
	}
	return dialer, &kafka.Transport{TLS: tlsConfig, SASL: mechanism}, nil
}

func buildKafkaTLSConfig(cfg *config.Kafka) (*tls.Config, error) {
	if !cfg.TLSEnabled {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec
	}
	if caFile := strings.TrimSpace(cfg.TLSCAFile); caFile != "" {
		caBytes, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("kafka event bus: read tls ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("kafka event bus: invalid tls ca file")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

func buildKafkaSASLMechanism(cfg *config.Kafka) (sasl.Mechanism, error) {
	username := strings.TrimSpace(cfg.SASLUsername)
	password := strings.TrimSpace(cfg.SASLPassword)
	if username == "" && password == "" {
		return nil, nil
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("kafka event bus: sasl username and password are required")
	}
	return plain.Mechanism{Username: username, Password: password}, nil
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func topicNameFor(prefix, eventType string) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultTopicPrefix
	}
	return prefix + "." + strings.ToLower(eventType)
}

func dlqTopicNameFor(prefix, eventType string) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultTopicPrefix
	}
	return prefix + ".dlq." + strings.ToLower(eventType)
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
