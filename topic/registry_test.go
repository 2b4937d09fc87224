package topic

import (
	"sync"
	"testing"
)

func TestRegistryAcquireRelease(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	key := NewIdentity("dev", "standup").Key()

	if !reg.Acquire(key) {
		t.Fatalf("Acquire() = false on idle topic, want true")
	}
	if reg.Acquire(key) {
		t.Fatalf("Acquire() = true on busy topic, want false")
	}
	if !reg.IsRunning(key) {
		t.Fatalf("IsRunning() = false while acquired, want true")
	}

	reg.Release(key)
	if reg.IsRunning(key) {
		t.Fatalf("IsRunning() = true after release, want false")
	}
	if !reg.Acquire(key) {
		t.Fatalf("Acquire() = false after release, want true")
	}
}

func TestRegistryIndependentTopics(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if !reg.Acquire("a/x") {
		t.Fatalf("Acquire(a/x) = false, want true")
	}
	if !reg.Acquire("b/y") {
		t.Fatalf("Acquire(b/y) = false, want true; unrelated topic blocked")
	}
}

func TestRegistryRunnerCached(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	created := 0
	create := func() any {
		created++
		return &struct{ n int }{n: created}
	}
	first := reg.Runner("a/x", create)
	second := reg.Runner("a/x", create)
	if first != second {
		t.Fatalf("Runner() returned distinct instances for the same key")
	}
	if created != 1 {
		t.Fatalf("create invoked %d times, want 1", created)
	}
}

func TestRegistryAcquireSingleWinner(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- reg.Acquire("dev/race")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("Acquire() granted %d slots concurrently, want exactly 1", won)
	}
}
