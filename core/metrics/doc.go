// Package metrics defines the recorder interfaces used by the cycle runner
// and the action dispatcher. Sinks only have to implement RecordCycle; the
// other recorders are optional and discovered by type assertion, so a
// MultiSink can mix narrow and full implementations.
package metrics
