package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestNewTimeBlock_RejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	for _, duration := range []time.Duration{0, -time.Minute} {
		_, err := NewTimeBlock("b1", "t1", blockEpoch, duration)
		if !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration for %v, got %v", duration, err)
		}
	}
}

func TestTimeBlock_EndTime(t *testing.T) {
	t.Parallel()

	b, err := NewTimeBlock("b1", "t1", blockEpoch, 90*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := blockEpoch.Add(90 * time.Minute)
	if !b.EndTime().Equal(want) {
		t.Fatalf("expected end %v, got %v", want, b.EndTime())
	}
}
