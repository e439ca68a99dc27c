package trigger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mentionflow/harness/internal/trigger"
)

func TestChan_WaitTimesOutWithoutSignal(t *testing.T) {
	c := trigger.New(1)

	wake := c.Wait(context.Background(), 10*time.Millisecond)
	if wake != trigger.TimedOut {
		t.Fatalf("got %v, want TimedOut", wake)
	}
}

func TestChan_SignalWakesOneWaiter(t *testing.T) {
	c := trigger.New(1)

	c.Signal()

	wake := c.Wait(context.Background(), time.Second)
	if wake != trigger.Triggered {
		t.Fatalf("got %v, want Triggered", wake)
	}
}

func TestChan_SignalDropsWhenFull(t *testing.T) {
	c := trigger.New(1)

	c.Signal()
	c.Signal() // buffer already has a token; this one is dropped.

	first := c.Wait(context.Background(), time.Second)
	if first != trigger.Triggered {
		t.Fatalf("first wait got %v, want Triggered", first)
	}

	second := c.Wait(context.Background(), 10*time.Millisecond)
	if second != trigger.TimedOut {
		t.Fatalf("second wait got %v, want TimedOut (no broadcast, no second token)", second)
	}
}

// TestChan_ExactlyOneWaiterPerToken is the anti-thundering-herd property:
// N signals release exactly N waiters, never all waiters at once.
func TestChan_ExactlyOneWaiterPerToken(t *testing.T) {
	const waiters = 5

	c := trigger.New(waiters)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wokenBy []trigger.Wake
	)

	for i := 0; i < waiters; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			wake := c.Wait(context.Background(), 200*time.Millisecond)

			mu.Lock()
			wokenBy = append(wokenBy, wake)
			mu.Unlock()
		}()
	}

	const signals = 2

	for i := 0; i < signals; i++ {
		c.Signal()
	}

	wg.Wait()

	var triggeredCount int

	for _, w := range wokenBy {
		if w == trigger.Triggered {
			triggeredCount++
		}
	}

	if triggeredCount != signals {
		t.Fatalf("got %d triggered waiters, want %d", triggeredCount, signals)
	}
}
