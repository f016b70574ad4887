package signals

import "context"

// Subscription is one receiver's handle on a signal kind. Its channel
// carries at most one pending wakeup: occurrences that arrive while a
// previous wakeup is unconsumed collapse into it.
type Subscription struct {
	id   string
	kind Kind
	ch   chan struct{}
	mux  *mux

	// closed is guarded by mux.mu. The channel is only ever closed
	// with that lock held, so the dispatcher can never send on a
	// closed channel.
	closed bool
}

// ID returns the unique subscription ID.
func (s *Subscription) ID() string { return s.id }

// Kind returns the signal kind this subscription receives.
func (s *Subscription) Kind() Kind { return s.kind }

// Ch returns the wakeup channel. Each receive means at least one
// occurrence since the previous receive. The channel is closed when
// the subscription is closed or the dispatcher fails, so ranging over
// it terminates cleanly.
func (s *Subscription) Ch() <-chan struct{} { return s.ch }

// Recv blocks until the next wakeup, context cancellation, or close.
func (s *Subscription) Recv(ctx context.Context) error {
	select {
	case _, ok := <-s.ch:
		if !ok {
			return ErrSubscriptionClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close detaches the subscription and closes its wakeup channel.
// Closing twice is a no-op. The OS-level hook for the kind stays
// installed for the lifetime of the process; see the package
// documentation.
func (s *Subscription) Close() error {
	s.mux.unsubscribe(s)
	return nil
}
