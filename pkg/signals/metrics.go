package signals

import "sync/atomic"

// MetricsRecorder defines metrics hooks for signal delivery. The
// coalesced stage is "queue" when an occurrence was absorbed while its
// kind was already pending dispatch, and "subscriber" when a fan-out
// send was absorbed by a wakeup the subscriber had not consumed yet.
type MetricsRecorder interface {
	RecordOccurrence(kind string)
	RecordDelivery(kind string)
	RecordCoalesced(kind string, stage string)
	RecordSubscribe(kind string)
	RecordUnsubscribe(kind string)
	RecordDispatcherFailure()
}

type nopMetrics struct{}

func (nopMetrics) RecordOccurrence(string)        {}
func (nopMetrics) RecordDelivery(string)          {}
func (nopMetrics) RecordCoalesced(string, string) {}
func (nopMetrics) RecordSubscribe(string)         {}
func (nopMetrics) RecordUnsubscribe(string)       {}
func (nopMetrics) RecordDispatcherFailure()       {}

// recorder holds the process-wide sink. Dispatch goroutines read it on
// every delivery, so it is an atomic pointer rather than a mutex.
var recorder atomic.Pointer[MetricsRecorder]

// SetMetricsRecorder routes signal delivery metrics to r for the whole
// process. Passing nil restores the discard recorder.
func SetMetricsRecorder(r MetricsRecorder) {
	if r == nil {
		r = nopMetrics{}
	}
	recorder.Store(&r)
}

func metricsRecorder() MetricsRecorder {
	if p := recorder.Load(); p != nil {
		return *p
	}
	return nopMetrics{}
}
