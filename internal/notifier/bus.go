// Package notifier carries engine events to whoever renders them: the CLI
// banner, the watch loop or tests.
package notifier

import "sync"

type Outcome string

const (
	OutcomeNoUpdate        Outcome = "no-update"
	OutcomeUpdateAvailable Outcome = "update-available"
	OutcomeError           Outcome = "error"
)

type CheckCompleted struct {
	Outcome Outcome
	Version string
	Manual  bool
	Err     error
}

// Bus is a synchronous fan-out; handlers run on the emitting goroutine in
// registration order.
type Bus struct {
	mu        sync.RWMutex
	updates   []func(version string)
	completed []func(CheckCompleted)
	errors    []func(error)
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) OnUpdateAvailable(fn func(version string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, fn)
}

func (b *Bus) OnCheckCompleted(fn func(CheckCompleted)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed = append(b.completed, fn)
}

// OnError receives failures of user-initiated checks only.
func (b *Bus) OnError(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, fn)
}

func (b *Bus) EmitUpdateAvailable(version string) {
	b.mu.RLock()
	handlers := append([]func(string){}, b.updates...)
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(version)
	}
}

func (b *Bus) EmitCheckCompleted(ev CheckCompleted) {
	b.mu.RLock()
	handlers := append([]func(CheckCompleted){}, b.completed...)
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (b *Bus) EmitError(err error) {
	b.mu.RLock()
	handlers := append([]func(error){}, b.errors...)
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}
