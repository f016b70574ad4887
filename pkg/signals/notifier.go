package signals

import (
	"os"
	"os/signal"
)

// notifier abstracts the runtime's signal plumbing so a mux can be
// driven deterministically in tests.
type notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// osNotifier is the production notifier backed by os/signal.
type osNotifier struct{}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (osNotifier) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}
