package live

import (
	"testing"
	"time"
)

func TestRetryDelayDoublesToCap(t *testing.T) {
	p := RetryPolicy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 5}

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestRetryDelayZeroValueUsesDefaults(t *testing.T) {
	var p RetryPolicy
	if got := p.Delay(1); got != 2*time.Second {
		t.Errorf("Delay(1) = %s, want 2s", got)
	}
	if got := p.Delay(100); got != 30*time.Second {
		t.Errorf("Delay(100) = %s, want 30s cap", got)
	}
}

func TestRetryExhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	if p.Exhausted(3) {
		t.Error("attempt 3 of 3 must still run")
	}
	if !p.Exhausted(4) {
		t.Error("attempt 4 of 3 must be exhausted")
	}

	forever := RetryPolicy{MaxAttempts: 0}
	if forever.Exhausted(1000) {
		t.Error("zero MaxAttempts means retry forever")
	}
}
