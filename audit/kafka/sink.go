package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	goOnboard "github.com/MrEthical07/goOnboard"
)

// DefaultTopic is the topic used when [Config.Topic] is empty.
const DefaultTopic = "goonboard.audit"

var (
	// ErrNoBrokers is returned by [NewSink] when no broker address is configured.
	ErrNoBrokers = errors.New("kafka brokers required")
	// ErrNilProducer is returned by [NewSinkFromProducer] for a nil producer.
	ErrNilProducer = errors.New("nil kafka producer")
)

// Config selects the brokers and topic for a [Sink].
//
// EventTypes restricts publishing to the named audit event types; an empty
// list publishes every event.
type Config struct {
	Brokers    []string
	Topic      string
	ClientID   string
	EventTypes []string
}

// Sink is a [goOnboard.AuditSink] that publishes each event as one JSON
// message keyed by the identity id, or the client key when no identity is known.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	only     map[string]struct{}
	logger   *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

var _ goOnboard.AuditBatchSink = (*Sink)(nil)

// NewSink dials the configured brokers with an idempotent, all-acks producer.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_7_0_0
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewSinkFromProducer(producer, cfg, logger)
}

// NewSinkFromProducer wraps an existing producer. Brokers in cfg are ignored.
func NewSinkFromProducer(producer sarama.SyncProducer, cfg Config, logger *slog.Logger) (*Sink, error) {
	if producer == nil {
		return nil, ErrNilProducer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	s := &Sink{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
	if len(cfg.EventTypes) > 0 {
		s.only = make(map[string]struct{}, len(cfg.EventTypes))
		for _, t := range cfg.EventTypes {
			s.only[t] = struct{}{}
		}
	}
	return s, nil
}

// Emit implements [goOnboard.AuditSink].
func (s *Sink) Emit(ctx context.Context, event goOnboard.AuditEvent) {
	if s == nil || s.producer == nil || !s.wants(event) {
		return
	}
	if ctx.Err() != nil {
		s.failed.Add(1)
		return
	}
	msg, ok := s.message(event)
	if !ok {
		return
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.failed.Add(1)
		s.logger.Error("audit publish failed", "topic", s.topic, "event_type", event.EventType, "error", err)
		return
	}
	s.published.Add(1)
}

// EmitBatch publishes events in one producer call. Per-message failures
// reported by the broker are counted without failing the rest of the batch.
func (s *Sink) EmitBatch(ctx context.Context, events []goOnboard.AuditEvent) {
	if s == nil || s.producer == nil {
		return
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, event := range events {
		if !s.wants(event) {
			continue
		}
		if msg, ok := s.message(event); ok {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return
	}
	if ctx.Err() != nil {
		s.failed.Add(uint64(len(msgs)))
		return
	}

	err := s.producer.SendMessages(msgs)
	if err == nil {
		s.published.Add(uint64(len(msgs)))
		return
	}
	var perMessage sarama.ProducerErrors
	if errors.As(err, &perMessage) {
		s.failed.Add(uint64(len(perMessage)))
		s.published.Add(uint64(len(msgs) - len(perMessage)))
		for _, pe := range perMessage {
			s.logger.Error("audit publish failed", "topic", s.topic, "error", pe.Err)
		}
		return
	}
	s.failed.Add(uint64(len(msgs)))
	s.logger.Error("audit batch publish failed", "topic", s.topic, "events", len(msgs), "error", err)
}

func (s *Sink) wants(event goOnboard.AuditEvent) bool {
	if s.only == nil {
		return true
	}
	_, ok := s.only[event.EventType]
	return ok
}

func (s *Sink) message(event goOnboard.AuditEvent) (*sarama.ProducerMessage, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("audit marshal failed", "event_type", event.EventType, "error", err)
		return nil, false
	}

	key := event.UserID
	if key == "" {
		key = event.ClientKey
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	return msg, true
}

// Published reports how many events reached the broker.
func (s *Sink) Published() uint64 { return s.published.Load() }

// Failed reports how many events were dropped by marshal or publish errors.
func (s *Sink) Failed() uint64 { return s.failed.Load() }

// Close closes the underlying producer.
func (s *Sink) Close() error {
	if s == nil || s.producer == nil {
		return nil
	}
	return s.producer.Close()
}
