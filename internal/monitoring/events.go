// Package monitoring keeps a bounded log of recent pipeline events, derives
// metrics from it and the lead store, and raises webhook alerts when the
// ingestion path degrades.
package monitoring

import (
	"sync"
	"time"
)

// EventType names a step in the life of one inbound message.
type EventType string

const (
	EventReceived EventType = "received"
	EventDropped  EventType = "dropped"
	EventParsed   EventType = "parsed"
	EventNoName   EventType = "no_name"
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventFailed   EventType = "failed"
)

// Event is one entry in the EventLog. Path is set on parsed events.
type Event struct {
	Time   time.Time `json:"time"`
	Type   EventType `json:"type"`
	Sender string    `json:"sender,omitempty"`
	LeadID string    `json:"lead_id,omitempty"`
	Path   string    `json:"path,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// EventLog is a fixed-capacity ring buffer of events. Once full, each Add
// overwrites the oldest entry. It is safe for concurrent use.
type EventLog struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	full  bool
	total int64
	now   func() time.Time
}

// NewEventLog creates an EventLog holding at most capacity events. A
// non-positive capacity defaults to 200.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 200
	}
	return &EventLog{buf: make([]Event, capacity), now: time.Now}
}

// Add records e, stamping it with the current time if unset.
func (l *EventLog) Add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.total++
}

// Recent returns up to n events, newest first. n <= 0 returns all retained
// events.
func (l *EventLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Counts tallies retained events at or after since by type.
func (l *EventLog) Counts(since time.Time) map[EventType]int {
	counts := make(map[EventType]int)
	for _, e := range l.Recent(0) {
		if e.Time.Before(since) {
			continue
		}
		counts[e.Type]++
	}
	return counts
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.buf)
	}
	return l.next
}

// Cap returns the buffer capacity.
func (l *EventLog) Cap() int {
	return len(l.buf)
}

// Total returns the number of events ever added, including evicted ones.
func (l *EventLog) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
