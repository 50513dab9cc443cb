package quota

import "time"

// NoopMetrics discards all observations. It keeps the Limiter free of nil
// checks when metrics are not wanted, such as in tests and CLI tools.
type NoopMetrics struct{}

// RecordDecision implements Metrics.
func (NoopMetrics) RecordDecision(string) {}

// RecordCheckDuration implements Metrics.
func (NoopMetrics) RecordCheckDuration(time.Duration) {}

// SetActiveKeys implements Metrics.
func (NoopMetrics) SetActiveKeys(int) {}

// RecordEvictions implements Metrics.
func (NoopMetrics) RecordEvictions(int) {}
