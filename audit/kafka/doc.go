// Package kafka publishes goOnboard audit events to a Kafka topic.
//
// [Sink] implements [goOnboard.AuditSink] over an IBM/sarama SyncProducer. It is
// meant to sit behind the engine's async audit dispatcher, so a slow broker
// delays the dispatcher goroutine and never an engine operation.
//
// # What this package must NOT do
//
//   - Retry beyond the producer's own retry budget.
//   - Return publish failures to callers. Failures are logged and counted.
package kafka
