//go:build unix

package signals

import (
	"context"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// These tests go through the real runtime plumbing: they install
// handlers with os/signal and raise signals against the test process.

func TestInterrupt_RealSignal(t *testing.T) {
	sub, err := Interrupt()
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if err := unix.Kill(os.Getpid(), unix.SIGINT); err != nil {
		t.Fatal(err)
	}
	awaitWake(t, sub)
}

func TestSubscribe_RealUserSignal(t *testing.T) {
	sub, err := Subscribe(KindUser1)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if err := unix.Kill(os.Getpid(), unix.SIGUSR1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sub.Recv(ctx); err != nil {
		t.Fatalf("Recv returned %v", err)
	}
}

func TestSubscribe_RealSignalFanOut(t *testing.T) {
	a, err := Subscribe(KindUser2)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Subscribe(KindUser2)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if got := Stats()[KindUser2]; got != 2 {
		t.Fatalf("Stats()[user2] = %d, want 2", got)
	}

	if err := unix.Kill(os.Getpid(), unix.SIGUSR2); err != nil {
		t.Fatal(err)
	}
	awaitWake(t, a)
	awaitWake(t, b)

	if !Healthy() {
		t.Fatal("expected delivery pipeline to be healthy")
	}
}
