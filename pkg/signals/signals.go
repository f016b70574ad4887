// Package signals delivers OS signals to any number of subscribers as
// coalescing wakeup notifications.
//
// Each Subscribe call returns a Subscription whose channel holds at
// most one pending wakeup. A receive from it means "at least one
// occurrence since the last receive"; occurrences that pile up while
// the receiver is busy collapse into a single wakeup, so a slow or
// absent receiver costs a fixed amount of memory and never blocks
// delivery to anyone else.
//
// The path from the runtime's signal handler to the subscribers is a
// per-kind capacity-one intake slot, an atomic pending bitmask with a
// capacity-one doorbell, and a single dispatcher goroutine that fans
// occurrences out under the registry lock. The dispatcher and the
// OS-level hooks are created lazily on first use and stay installed
// for the lifetime of the process: releasing the last subscription of
// a kind detaches the subscribers but deliberately leaves the hook in
// place.
package signals

import "sync"

var (
	procOnce sync.Once
	proc     *mux
)

// procMux returns the process-wide mux, creating it on first use.
func procMux() *mux {
	procOnce.Do(func() {
		proc = newMux(osNotifier{})
	})
	return proc
}

// Subscribe registers a subscription for the given kind. It returns
// ErrRegistrationFailed when the platform cannot deliver the kind and
// ErrDispatcherFatal when signal delivery has already broken down;
// neither aborts the process.
func Subscribe(kind Kind) (*Subscription, error) {
	return procMux().subscribe(kind)
}

// Interrupt subscribes to the platform interrupt: Ctrl+C on a console,
// SIGINT elsewhere. It is the portable entry point that works on every
// supported platform.
func Interrupt() (*Subscription, error) {
	return Subscribe(KindInterrupt)
}

// Stats reports the number of live subscriptions per kind.
func Stats() map[Kind]int {
	return procMux().stats()
}

// Healthy reports whether the delivery pipeline is operational. It
// turns false only after a dispatcher failure, which is also logged
// loudly and surfaced through the metrics recorder.
func Healthy() bool {
	return procMux().healthy()
}
