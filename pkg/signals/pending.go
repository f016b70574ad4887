package signals

import "sync/atomic"

// pendingSet is the mailbox between the intake forwarders and the
// dispatcher: one bit per kind plus a capacity-one doorbell. The
// intake side never blocks, allocates, or takes a lock.
type pendingSet struct {
	bits atomic.Uint64
	wake chan struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{wake: make(chan struct{}, 1)}
}

// mark records an occurrence of k and rings the doorbell. It reports
// whether the bit was newly set; false means the kind was already
// pending and this occurrence coalesced into it. The bit is set before
// the send: when the doorbell is already full, the wakeup it holds has
// not been consumed yet, and the drain that follows that wakeup will
// observe this bit.
func (p *pendingSet) mark(k Kind) bool {
	prev := p.bits.Or(1 << uint(k))
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return prev&(1<<uint(k)) == 0
}

// drain atomically takes and clears the pending bits.
func (p *pendingSet) drain() uint64 {
	return p.bits.Swap(0)
}
