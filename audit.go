package goOnboard

import (
	"io"

	internalaudit "github.com/MrEthical07/goOnboard/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// AuditBatchSink is an [AuditSink] that also accepts several queued events in one
// call. The dispatcher batches up to [AuditConfig.BatchSize] events for it.
type AuditBatchSink = internalaudit.BatchSink

// AuditStats counts delivered, dropped and failed audit events.
type AuditStats = internalaudit.Stats

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans each event out to several sinks in order.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
