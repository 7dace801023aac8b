package watcher

import (
	"sort"
	"sync"
	"time"
)

// EventOp is the kind of change reported for a path.
type EventOp int

const (
	OpCreate EventOp = iota
	OpWrite
	OpRemove
	OpRename
)

func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "rename"
	}
}

// Event is one path in a debounced batch.
type Event struct {
	Path string
	Op   EventOp
}

// Debouncer collapses bursts of events into one batch per quiet period.
// Later events for a path replace earlier ones.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	events   map[string]Event
	timer    *time.Timer
	output   chan []Event
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		events:   make(map[string]Event),
		output:   make(chan []Event, 1),
	}
}

// Output receives the batches, sorted by path.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Add records an event and restarts the quiet period.
func (d *Debouncer) Add(path string, op EventOp) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events[path] = Event{Path: path, Op: op}
	d.resetTimer()
}

func (d *Debouncer) resetTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

// flush hands the pending events over. While the consumer still holds an
// unread batch, events keep accumulating and the flush is retried.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.events) == 0 {
		return
	}
	batch := make([]Event, 0, len(d.events))
	for _, event := range d.events {
		batch = append(batch, event)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.output <- batch:
		d.events = make(map[string]Event)
	default:
		d.resetTimer()
	}
}

// Stop cancels a pending flush.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
