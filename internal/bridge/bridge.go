// Package bridge runs named step sequences with per-key single-flight
// semantics. It lets a synchronous call site (one inbound chat event) drive
// a multi-step network operation without blocking unrelated keys, and
// guarantees strict arrival-order processing for events sharing a key.
package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Step is one unit of a sequence. Failures propagate to the caller wrapped
// with the step name so the failing stage is always identifiable.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

type runningKeyContextKey struct{}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Bridge serializes sequences per key. Locks are refcounted and removed
// when the last waiter releases them, so an idle Bridge holds no state.
type Bridge struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func New() *Bridge {
	return &Bridge{
		locks: make(map[string]*keyLock),
	}
}

// Run executes the steps in order under key's lock and returns the first
// failure. Sequences for the same key run strictly one at a time in lock
// acquisition order; sequences for different keys run concurrently.
//
// Each call executes on a fresh goroutine that is torn down on every exit
// path. A nested Run for the same key, detected through ctx, executes
// inline on the caller's goroutine instead: spawning and waiting there
// would deadlock on the key lock the caller already holds.
func (b *Bridge) Run(ctx context.Context, key string, steps ...Step) error {
	if running, _ := ctx.Value(runningKeyContextKey{}).(string); running == key {
		return execSteps(ctx, steps)
	}

	l := b.acquire(key)
	defer b.release(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx = context.WithValue(ctx, runningKeyContextKey{}, key)
	done := make(chan error, 1)
	go func() {
		done <- execSteps(ctx, steps)
	}()
	// The lock must outlive the sequence, so cancellation is honored by the
	// steps themselves, not by abandoning the goroutine mid-flight.
	return <-done
}

// InFlight reports whether a sequence currently holds or waits on key.
func (b *Bridge) InFlight(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.locks[key]
	return ok
}

func (b *Bridge) acquire(key string) *keyLock {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[key]
	if !ok {
		l = &keyLock{}
		b.locks[key] = l
	}
	l.refs++
	return l
}

func (b *Bridge) release(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[key]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(b.locks, key)
	}
}

func execSteps(ctx context.Context, steps []Step) (err error) {
	current := ""
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", current, r)
		}
	}()

	for _, step := range steps {
		current = step.Name
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%s: %w", step.Name, cerr)
		}
		if step.Run == nil {
			continue
		}
		if serr := step.Run(ctx); serr != nil {
			return fmt.Errorf("%s: %w", step.Name, serr)
		}
	}
	return nil
}
