// Package notifytest provides a recording notify.Publisher for tests.
package notifytest

import (
	"context"
	"sync"

	"evently/internal/notify"
)

type Recorder struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func New() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(ctx context.Context, intent notify.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return nil
}

func (r *Recorder) Intents() []notify.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Intent(nil), r.intents...)
}

func (r *Recorder) CountOfType(t notify.IntentType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, i := range r.intents {
		if i.Type == t {
			n++
		}
	}
	return n
}
