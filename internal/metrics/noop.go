package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder, used when
// metrics are disabled so call sites stay unconditional.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordLogin(result string, duration time.Duration)  {}
func (n *NoopMetrics) RecordLogout()                                      {}
func (n *NoopMetrics) RecordSessionCreated()                              {}
func (n *NoopMetrics) RecordSessionsExpired(count int)                    {}
func (n *NoopMetrics) SetActiveSessions(count int)                        {}
func (n *NoopMetrics) RecordHandleListing(result string, handleCount int) {}
func (n *NoopMetrics) RecordHandleRelease(result string)                  {}
func (n *NoopMetrics) RecordRateLimited(endpoint string)                  {}
