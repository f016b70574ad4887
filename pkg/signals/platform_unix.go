//go:build unix

package signals

import (
	"os"

	"golang.org/x/sys/unix"
)

// kindSignals maps every kind to its POSIX signal. All kinds are
// deliverable on unix platforms.
var kindSignals = map[Kind]os.Signal{
	KindInterrupt: unix.SIGINT,
	KindTerminate: unix.SIGTERM,
	KindHangup:    unix.SIGHUP,
	KindQuit:      unix.SIGQUIT,
	KindAlarm:     unix.SIGALRM,
	KindUser1:     unix.SIGUSR1,
	KindUser2:     unix.SIGUSR2,
	KindPipe:      unix.SIGPIPE,
	KindTrap:      unix.SIGTRAP,
}
