package signals

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
	}{
		{"interrupt", KindInterrupt},
		{"int", KindInterrupt},
		{"sigint", KindInterrupt},
		{"SIGINT", KindInterrupt},
		{"terminate", KindTerminate},
		{"term", KindTerminate},
		{"sigterm", KindTerminate},
		{"hangup", KindHangup},
		{"hup", KindHangup},
		{"quit", KindQuit},
		{"alarm", KindAlarm},
		{"alrm", KindAlarm},
		{"user1", KindUser1},
		{"usr1", KindUser1},
		{"sigusr1", KindUser1},
		{"user2", KindUser2},
		{"usr2", KindUser2},
		{"pipe", KindPipe},
		{"trap", KindTrap},
		{"  term  ", KindTerminate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseKind(tt.input)
			if err != nil {
				t.Fatalf("ParseKind(%q) returned error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseKind_Unknown(t *testing.T) {
	for _, input := range []string{"", "bogus", "sig", "kill", "interrupt2"} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseKind(input); err == nil {
				t.Errorf("ParseKind(%q) expected error, got nil", input)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindInterrupt, "interrupt"},
		{KindTerminate, "terminate"},
		{KindHangup, "hangup"},
		{KindQuit, "quit"},
		{KindAlarm, "alarm"},
		{KindUser1, "user1"},
		{KindUser2, "user2"},
		{KindPipe, "pipe"},
		{KindTrap, "trap"},
		{Kind(0), "unknown"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKind_ParseStringRoundTrip(t *testing.T) {
	for k := KindInterrupt; k < kindMax; k++ {
		parsed, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q) returned error: %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), parsed, k)
		}
	}
}

func TestSupported(t *testing.T) {
	kinds := Supported()
	if len(kinds) == 0 {
		t.Fatal("expected at least one supported kind")
	}

	seen := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		if _, ok := osSignal(k); !ok {
			t.Errorf("Supported() returned %v which has no platform signal", k)
		}
		seen[k] = true
	}

	// The portable pair must be deliverable everywhere.
	if !seen[KindInterrupt] {
		t.Error("expected interrupt to be supported")
	}
	if !seen[KindTerminate] {
		t.Error("expected terminate to be supported")
	}
}

func TestOSSignal_UnknownKind(t *testing.T) {
	if _, ok := osSignal(Kind(0)); ok {
		t.Error("expected no platform signal for kind 0")
	}
	if _, ok := osSignal(Kind(99)); ok {
		t.Error("expected no platform signal for kind 99")
	}
}
