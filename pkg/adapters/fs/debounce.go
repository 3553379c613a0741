package fs

import (
	"sync"
	"time"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// debouncer coalesces bursts of filesystem events per record id. Editors and
// atomic renames produce several raw events for one logical change; only the
// last one within the window is delivered.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]pendingEvent
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	timer *time.Timer
	gen   uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		timers: make(map[string]pendingEvent),
	}
}

// add schedules delivery of the event, replacing any pending delivery for
// the same id and type.
func (d *debouncer) add(e core.Event, deliver func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := string(e.Type) + ":" + e.ID
	if p, ok := d.timers[key]; ok {
		// Stop reports false when the timer already fired; its callback
		// accounts for itself in that case.
		if p.timer.Stop() {
			d.wg.Done()
		}
	}

	d.gen++
	gen := d.gen
	d.wg.Add(1)

	timer := time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if p, ok := d.timers[key]; ok && p.gen == gen {
			delete(d.timers, key)
		}
		stopped := d.stopped
		d.mu.Unlock()

		if !stopped {
			deliver(e)
		}
	})
	d.timers[key] = pendingEvent{timer: timer, gen: gen}
}

// stopAndWait rejects new events and waits for in-flight timers to finish,
// up to the given timeout.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
