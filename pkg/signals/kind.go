package signals

import (
	"fmt"
	"os"
	"strings"
)

// Kind identifies a signal in platform-neutral terms.
type Kind int

// Signal kinds. Not every kind is deliverable on every platform;
// Supported lists the ones the current platform can deliver.
const (
	KindInterrupt Kind = iota + 1
	KindTerminate
	KindHangup
	KindQuit
	KindAlarm
	KindUser1
	KindUser2
	KindPipe
	KindTrap

	kindMax
)

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInterrupt:
		return "interrupt"
	case KindTerminate:
		return "terminate"
	case KindHangup:
		return "hangup"
	case KindQuit:
		return "quit"
	case KindAlarm:
		return "alarm"
	case KindUser1:
		return "user1"
	case KindUser2:
		return "user2"
	case KindPipe:
		return "pipe"
	case KindTrap:
		return "trap"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name. It accepts the canonical names plus
// the usual short forms ("term", "sigint", "usr1", ...).
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "sig")
	switch name {
	case "interrupt", "int":
		return KindInterrupt, nil
	case "terminate", "term":
		return KindTerminate, nil
	case "hangup", "hup":
		return KindHangup, nil
	case "quit":
		return KindQuit, nil
	case "alarm", "alrm":
		return KindAlarm, nil
	case "user1", "usr1":
		return KindUser1, nil
	case "user2", "usr2":
		return KindUser2, nil
	case "pipe":
		return KindPipe, nil
	case "trap":
		return KindTrap, nil
	default:
		return 0, fmt.Errorf("unknown signal kind %q", s)
	}
}

// osSignal maps a kind to the concrete signal the platform delivers.
func osSignal(k Kind) (os.Signal, bool) {
	sig, ok := kindSignals[k]
	return sig, ok
}

// Supported returns the kinds the current platform can deliver, in
// kind order.
func Supported() []Kind {
	kinds := make([]Kind, 0, len(kindSignals))
	for k := KindInterrupt; k < kindMax; k++ {
		if _, ok := kindSignals[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
