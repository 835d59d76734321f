package monitoring

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_RecentNewestFirst(t *testing.T) {
	l := NewEventLog(5)
	for i := range 3 {
		l.Add(Event{Type: EventReceived, Sender: fmt.Sprintf("s%d", i)})
	}

	got := l.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "s2", got[0].Sender)
	assert.Equal(t, "s0", got[2].Sender)
	assert.False(t, got[0].Time.IsZero())

	assert.Len(t, l.Recent(2), 2)
	assert.Len(t, l.Recent(10), 3)
}

func TestEventLog_Bounded(t *testing.T) {
	l := NewEventLog(3)
	for i := range 10 {
		l.Add(Event{Type: EventReceived, Sender: fmt.Sprintf("s%d", i)})
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 3, l.Cap())
	assert.Equal(t, int64(10), l.Total())

	got := l.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "s9", got[0].Sender)
	assert.Equal(t, "s8", got[1].Sender)
	assert.Equal(t, "s7", got[2].Sender)
}

func TestEventLog_ExactlyFull(t *testing.T) {
	l := NewEventLog(2)
	l.Add(Event{Sender: "a"})
	l.Add(Event{Sender: "b"})

	got := l.Recent(0)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Sender)
	assert.Equal(t, "a", got[1].Sender)
}

func TestEventLog_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 200, NewEventLog(0).Cap())
	assert.Empty(t, NewEventLog(0).Recent(0))
}

func TestEventLog_KeepsExplicitTime(t *testing.T) {
	l := NewEventLog(2)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Add(Event{Type: EventCreated, Time: ts})
	assert.Equal(t, ts, l.Recent(1)[0].Time)
}

func TestEventLog_Counts(t *testing.T) {
	l := NewEventLog(10)
	old := time.Now().Add(-2 * time.Hour)
	l.Add(Event{Type: EventReceived, Time: old})
	l.Add(Event{Type: EventReceived})
	l.Add(Event{Type: EventReceived})
	l.Add(Event{Type: EventCreated})

	counts := l.Counts(time.Now().Add(-time.Hour))
	assert.Equal(t, 2, counts[EventReceived])
	assert.Equal(t, 1, counts[EventCreated])
	assert.Equal(t, 0, counts[EventFailed])
}

func TestEventLog_ConcurrentAdd(t *testing.T) {
	l := NewEventLog(50)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				l.Add(Event{Type: EventReceived})
				_ = l.Recent(5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(500), l.Total())
	assert.Equal(t, 50, l.Len())
}
