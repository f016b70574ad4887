package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goclaw/sigmux/pkg/api/events"
	"github.com/goclaw/sigmux/pkg/logger"
	"github.com/goclaw/sigmux/pkg/signals"
	"golang.org/x/time/rate"
)

// watchManager owns the per-kind signal subscriptions and forwards
// every occurrence to the event broadcaster. Occurrence logging is
// rate limited per kind so a signal storm cannot flood the log.
type watchManager struct {
	log         logger.Logger
	broadcaster *events.Broadcaster

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	kinds  []string
}

func newWatchManager(log logger.Logger, broadcaster *events.Broadcaster) *watchManager {
	return &watchManager{
		log:         log,
		broadcaster: broadcaster,
	}
}

// Apply replaces the watched kind set. Running watchers are stopped
// and drained before the new set is subscribed, so a reload never
// leaves two watchers on the same kind.
func (m *watchManager) Apply(ctx context.Context, kindNames []string, logEvery time.Duration) error {
	kinds := make([]signals.Kind, 0, len(kindNames))
	for _, name := range kindNames {
		kind, err := signals.ParseKind(name)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	watchCtx, cancel := context.WithCancel(ctx)

	subs := make([]*signals.Subscription, 0, len(kinds))
	for _, kind := range kinds {
		sub, err := signals.Subscribe(kind)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			cancel()
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}

	m.cancel = cancel
	m.kinds = append([]string(nil), kindNames...)

	for _, sub := range subs {
		var limiter *rate.Limiter
		if logEvery > 0 {
			limiter = rate.NewLimiter(rate.Every(logEvery), 1)
		}
		m.wg.Add(1)
		go m.watch(watchCtx, sub, limiter)
	}

	m.log.Info("Watching signal kinds", "kinds", kindNames, "log_every", logEvery)
	return nil
}

// Kinds returns the currently watched kind names.
func (m *watchManager) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.kinds...)
}

// Stop tears down all watchers and waits for them to exit.
func (m *watchManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// stopLocked requires m.mu held. Watchers never take m.mu, so waiting
// on them under the lock cannot deadlock.
func (m *watchManager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
	m.wg.Wait()
	m.kinds = nil
}

func (m *watchManager) watch(ctx context.Context, sub *signals.Subscription, limiter *rate.Limiter) {
	defer m.wg.Done()
	defer sub.Close()

	kind := sub.Kind().String()
	for {
		if err := sub.Recv(ctx); err != nil {
			if errors.Is(err, signals.ErrSubscriptionClosed) {
				m.log.Warn("Signal subscription closed", "kind", kind)
			}
			return
		}

		observedAt := time.Now().UTC()
		if limiter == nil || limiter.Allow() {
			m.log.Info("Signal observed", "kind", kind)
		}
		m.broadcaster.BroadcastOccurrence(kind, observedAt)
	}
}
