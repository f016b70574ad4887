package signals

import (
	"fmt"
	"math/bits"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/goclaw/sigmux/pkg/logger"
)

// install tracks the OS-level hook for one kind. The hook stays
// registered for the lifetime of the process even when refs drops to
// zero: removing it would race an in-flight occurrence against the
// disposition reset, so releasing a subscription only detaches it
// from the registry.
type install struct {
	slot chan os.Signal
	refs int
}

// mux owns the pending set, the subscriber registry, and the
// dispatcher goroutine. A single process-wide instance backs the
// package-level API; tests build their own around a fake notifier.
type mux struct {
	src     notifier
	pending *pendingSet

	mu       sync.Mutex
	subs     map[Kind][]*Subscription
	installs map[Kind]*install
	failure  error

	startOnce sync.Once
	failOnce  sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func newMux(src notifier) *mux {
	return &mux{
		src:      src,
		pending:  newPendingSet(),
		subs:     make(map[Kind][]*Subscription),
		installs: make(map[Kind]*install),
		done:     make(chan struct{}),
	}
}

// subscribe registers a new subscription for the given kind, lazily
// starting the dispatcher and installing the OS-level hook on first
// use of the kind.
func (m *mux) subscribe(k Kind) (*Subscription, error) {
	sig, ok := osSignal(k)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not deliverable on %s", ErrRegistrationFailed, k.String(), runtime.GOOS)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatcherFatal, m.failure)
	}

	m.startOnce.Do(func() {
		go m.dispatch()
	})

	inst := m.installs[k]
	if inst == nil {
		// Capacity one so a burst collapses into a single pending
		// occurrence instead of backing up the runtime's delivery.
		slot := make(chan os.Signal, 1)
		m.src.Notify(slot, sig)
		inst = &install{slot: slot}
		m.installs[k] = inst
		go m.forward(k, slot)
		logger.Debug("signal hook installed", "kind", k.String(), "os_signal", sig.String())
	}
	inst.refs++

	sub := &Subscription{
		id:   uuid.New().String(),
		kind: k,
		ch:   make(chan struct{}, 1),
		mux:  m,
	}
	m.subs[k] = append(m.subs[k], sub)

	metricsRecorder().RecordSubscribe(k.String())
	logger.Debug("signal subscription registered",
		"kind", k.String(),
		"subscription_id", sub.id,
		"subscribers", len(m.subs[k]),
	)
	return sub, nil
}

// unsubscribe detaches a subscription and closes its channel.
func (m *mux) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachLocked(sub)
}

// detachLocked removes sub from the registry and closes its wakeup
// channel. Callers must hold m.mu.
func (m *mux) detachLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true

	list := m.subs[sub.kind]
	for i, cur := range list {
		if cur == sub {
			m.subs[sub.kind] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.subs[sub.kind]) == 0 {
		delete(m.subs, sub.kind)
	}
	if inst := m.installs[sub.kind]; inst != nil && inst.refs > 0 {
		inst.refs--
	}

	close(sub.ch)

	metricsRecorder().RecordUnsubscribe(sub.kind.String())
	logger.Debug("signal subscription released",
		"kind", sub.kind.String(),
		"subscription_id", sub.id,
	)
}

// forward drains one intake slot into the pending set. It runs on its
// own goroutine, so the only work between the runtime's handler and
// the dispatcher wakeup is an atomic bit set and a non-blocking send.
func (m *mux) forward(k Kind, slot <-chan os.Signal) {
	for {
		select {
		case _, ok := <-slot:
			if !ok {
				m.fail(fmt.Errorf("intake slot for %s closed unexpectedly", k.String()))
				return
			}
			rec := metricsRecorder()
			rec.RecordOccurrence(k.String())
			if !m.pending.mark(k) {
				rec.RecordCoalesced(k.String(), "queue")
			}
		case <-m.done:
			return
		}
	}
}

// dispatch is the singleton delivery loop: sleep until the doorbell
// rings, swap out the pending bits, fan each kind out to its
// subscribers.
func (m *mux) dispatch() {
	for {
		select {
		case <-m.pending.wake:
			m.deliver(m.pending.drain())
		case <-m.done:
			return
		}
	}
}

func (m *mux) deliver(pending uint64) {
	for pending != 0 {
		k := Kind(bits.TrailingZeros64(pending))
		pending &= pending - 1
		m.fanOut(k)
	}
}

// fanOut pokes every subscriber of k with a non-blocking send. A
// subscriber that has not consumed its previous wakeup needs no second
// one, so a full channel counts as coalesced rather than blocking the
// loop.
func (m *mux) fanOut(k Kind) {
	rec := metricsRecorder()

	var delivered, coalesced int
	m.mu.Lock()
	if m.failure != nil {
		m.mu.Unlock()
		return
	}
	for _, sub := range m.subs[k] {
		select {
		case sub.ch <- struct{}{}:
			delivered++
			rec.RecordDelivery(k.String())
		default:
			coalesced++
			rec.RecordCoalesced(k.String(), "subscriber")
		}
	}
	m.mu.Unlock()

	logger.Debug("signal occurrence dispatched",
		"kind", k.String(),
		"delivered", delivered,
		"coalesced", coalesced,
	)
}

// fail marks the mux permanently broken: no further occurrences will
// be observed in this process. Every live subscription is closed so
// blocked receivers find out, and later Subscribe calls are refused.
func (m *mux) fail(err error) {
	m.failOnce.Do(func() {
		m.mu.Lock()
		m.failure = err
		for _, list := range m.subs {
			for _, sub := range append([]*Subscription(nil), list...) {
				m.detachLocked(sub)
			}
		}
		m.mu.Unlock()

		metricsRecorder().RecordDispatcherFailure()
		logger.Error("signal dispatcher failed, delivery is disabled for this process", "error", err)
		m.stop()
	})
}

// stop terminates the dispatcher and forwarder goroutines.
func (m *mux) stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// close tears down the mux: goroutines stop, OS hooks are detached,
// and remaining subscriptions are closed. Only tests use it; the
// process-wide mux lives until exit.
func (m *mux) close() {
	m.stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, inst := range m.installs {
		m.src.Stop(inst.slot)
		delete(m.installs, k)
	}
	for _, list := range m.subs {
		for _, sub := range append([]*Subscription(nil), list...) {
			m.detachLocked(sub)
		}
	}
}

// stats returns the live subscription count per kind.
func (m *mux) stats() map[Kind]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Kind]int, len(m.subs))
	for k, list := range m.subs {
		if len(list) > 0 {
			out[k] = len(list)
		}
	}
	return out
}

// healthy reports whether the delivery pipeline is operational.
func (m *mux) healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure == nil
}
