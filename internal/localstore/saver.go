package localstore

import (
	"sync"
	"time"
)

// DebouncedSaver coalesces rapid successive mutations into fewer physical
// writes. Each Mark replaces the pending value for its key and re-arms the
// settle timer; once input goes quiet everything pending lands in one pass.
// Last write wins per key, which matches the full-overwrite Save contract.
type DebouncedSaver struct {
	store  *Store
	settle time.Duration

	mu      sync.Mutex
	pending map[string]any
	timer   *time.Timer
	closed  bool
}

func NewDebouncedSaver(store *Store, settle time.Duration) *DebouncedSaver {
	return &DebouncedSaver{
		store:   store,
		settle:  settle,
		pending: make(map[string]any),
	}
}

// Mark schedules value to be written under key on the next settle.
func (d *DebouncedSaver) Mark(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending[key] = value
	if d.timer == nil {
		d.timer = time.AfterFunc(d.settle, d.settleNow)
	} else {
		d.timer.Reset(d.settle)
	}
}

func (d *DebouncedSaver) settleNow() {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[string]any)
	d.timer = nil
	d.mu.Unlock()

	for key, value := range pending {
		d.store.Save(key, value)
	}
}

// Flush writes everything still pending. Call before teardown so the last
// mutation is durable before the next Load.
func (d *DebouncedSaver) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.settleNow()
}

// Close flushes and refuses further marks.
func (d *DebouncedSaver) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush()
}
