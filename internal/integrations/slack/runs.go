package slackbot

import (
	"context"
	"sync"
)

// runRegistry tracks the cancel functions of in-flight triage runs so the
// cancel button can stop them.
type runRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *runRegistry) add(key string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[key] = cancel
}

func (r *runRegistry) remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, key)
}

// cancel stops the run and reports whether it was still in flight.
func (r *runRegistry) cancel(key string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[key]
	delete(r.cancels, key)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (r *runRegistry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
