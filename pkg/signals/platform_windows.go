//go:build windows

package signals

import (
	"os"
	"syscall"
)

// kindSignals maps the kinds Windows can deliver. The console runtime
// reports Ctrl+C and Ctrl+Break as an interrupt, and console close,
// logoff, and shutdown as a terminate. The remaining POSIX kinds have
// no Windows equivalent, so subscribing to them fails registration.
var kindSignals = map[Kind]os.Signal{
	KindInterrupt: os.Interrupt,
	KindTerminate: syscall.SIGTERM,
}
