package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	m := NewManager([]CounterConfig{
		{ID: "1", Name: "Family Medicine"},
		{ID: "2", Name: "Dental"},
	}, opts...)
	return m, clock
}

func TestNewCounter_Defaults(t *testing.T) {
	c := NewCounter(CounterConfig{ID: "7", Name: "Eyes"})

	assert.Equal(t, "7", c.ID)
	assert.Equal(t, 0, c.CurrentTicket)
	assert.True(t, c.IsActive)
	assert.NotNil(t, c.Queue)
	assert.Empty(t, c.Queue)
	assert.Equal(t, 0, c.Stats.TotalCalled)
	assert.Equal(t, DefaultAverageWait, c.Stats.AverageWaitTimeMinutes)
	assert.Nil(t, c.LastCallAt)
}

func TestAdvance(t *testing.T) {
	m, clock := newTestManager(t)

	e, err := m.Advance("1")
	require.NoError(t, err)

	assert.Equal(t, CallEvent{
		CounterID:    "1",
		CounterName:  "Family Medicine",
		TicketNumber: 1,
		Timestamp:    clock.Now(),
		Action:       ActionAdvance,
	}, e)

	c, ok := m.Counter("1")
	require.True(t, ok)
	assert.Equal(t, 1, c.CurrentTicket)
	require.NotNil(t, c.LastCallAt)
	assert.Equal(t, clock.Now(), *c.LastCallAt)
	assert.Equal(t, 1, c.Stats.TotalCalled)
	require.NotNil(t, c.Stats.LastCallTime)
	assert.Equal(t, 1, m.history.Len())
}

func TestAdvance_Failures(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Advance("missing")
	assert.ErrorIs(t, err, ErrCounterNotFound)

	_, err = m.Pause("1")
	require.NoError(t, err)

	_, err = m.Advance("1")
	assert.ErrorIs(t, err, ErrCounterInactive)

	c, _ := m.Counter("1")
	assert.Equal(t, 0, c.CurrentTicket)
	assert.Equal(t, 0, m.history.Len())
}

func TestPrevious_FloorsAtZero(t *testing.T) {
	m, _ := newTestManager(t)

	for i := 0; i < 5; i++ {
		e, err := m.Previous("1")
		require.NoError(t, err)
		assert.Equal(t, 0, e.TicketNumber)
		assert.Equal(t, ActionPrevious, e.Action)

		c, _ := m.Counter("1")
		assert.GreaterOrEqual(t, c.CurrentTicket, 0)
	}
	assert.Equal(t, 5, m.history.Len())
}

func TestPrevious_DoesNotCountStats(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Advance("1")
	require.NoError(t, err)
	e, err := m.Previous("1")
	require.NoError(t, err)
	assert.Equal(t, 0, e.TicketNumber)

	c, _ := m.Counter("1")
	assert.Equal(t, 1, c.Stats.TotalCalled)
}

func TestRepeat(t *testing.T) {
	m, _ := newTestManager(t)

	t.Run("nothing called yet", func(t *testing.T) {
		before, _ := m.Counter("1")
		_, err := m.Repeat("1")
		assert.ErrorIs(t, err, ErrNothingToRepeat)

		after, _ := m.Counter("1")
		assert.Equal(t, before, after)
		assert.Equal(t, 0, m.history.Len())
	})

	t.Run("repeats current ticket", func(t *testing.T) {
		_, err := m.Specific("1", 12)
		require.NoError(t, err)

		e, err := m.Repeat("1")
		require.NoError(t, err)
		assert.Equal(t, 12, e.TicketNumber)
		assert.Equal(t, ActionRepeat, e.Action)

		c, _ := m.Counter("1")
		assert.Equal(t, 12, c.CurrentTicket)
		assert.Equal(t, 1, c.Stats.TotalCalled)
	})
}

func TestSpecific(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Specific("2", 40)
	require.NoError(t, err)
	e, err := m.Specific("2", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, e.TicketNumber)
	assert.Equal(t, ActionSpecific, e.Action)

	c, _ := m.Counter("2")
	assert.Equal(t, 3, c.CurrentTicket)
	assert.Equal(t, 2, c.Stats.TotalCalled)

	_, err = m.Specific("2", -1)
	assert.ErrorIs(t, err, ErrInvalidTicket)
	c, _ = m.Counter("2")
	assert.Equal(t, 3, c.CurrentTicket)
}

func TestReset(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Enqueue("1", 4)
	require.NoError(t, err)
	_, err = m.Specific("1", 9)
	require.NoError(t, err)
	_, err = m.Pause("1")
	require.NoError(t, err)

	c, err := m.Reset("1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentTicket)
	assert.Empty(t, c.Queue)
	assert.Nil(t, c.LastCallAt)
	assert.False(t, c.IsActive)
	assert.Equal(t, 1, c.Stats.TotalCalled)

	_, err = m.Reset("missing")
	assert.ErrorIs(t, err, ErrCounterNotFound)
}

func TestPauseResume(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Specific("1", 5)
	require.NoError(t, err)

	c, err := m.Pause("1")
	require.NoError(t, err)
	assert.False(t, c.IsActive)
	assert.Equal(t, 5, c.CurrentTicket)
	assert.Len(t, m.ActiveCounters(), 1)

	c, err = m.Resume("1")
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.Equal(t, 1, m.history.Len())

	_, err = m.Pause("missing")
	assert.ErrorIs(t, err, ErrCounterNotFound)
}

func TestEnqueue_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Enqueue("1", 14)
	require.NoError(t, err)
	c, err := m.Enqueue("1", 14)
	require.NoError(t, err)

	require.Len(t, c.Queue, 1)
	assert.Equal(t, 14, c.Queue[0].Number)
	assert.Equal(t, StatusWaiting, c.Queue[0].Status)
}

func TestDequeue(t *testing.T) {
	m, _ := newTestManager(t)

	for _, n := range []int{3, 4, 5} {
		_, err := m.Enqueue("1", n)
		require.NoError(t, err)
	}

	c, err := m.Dequeue("1", 4)
	require.NoError(t, err)
	require.Len(t, c.Queue, 2)
	assert.Equal(t, 3, c.Queue[0].Number)
	assert.Equal(t, 5, c.Queue[1].Number)

	c, err = m.Dequeue("1", 99)
	require.NoError(t, err)
	assert.Len(t, c.Queue, 2)

	_, err = m.Dequeue("missing", 3)
	assert.ErrorIs(t, err, ErrCounterNotFound)
}

func TestAdvance_MarksQueueEntryCalled(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Enqueue("1", 1)
	require.NoError(t, err)
	_, err = m.Enqueue("1", 2)
	require.NoError(t, err)

	_, err = m.Advance("1")
	require.NoError(t, err)

	c, _ := m.Counter("1")
	assert.Equal(t, StatusCalled, c.Queue[0].Status)
	assert.Equal(t, StatusWaiting, c.Queue[1].Status)
	assert.Equal(t, 2, m.QueueLength("1"))
}

func TestUpdate_ShallowMerge(t *testing.T) {
	m, _ := newTestManager(t)

	name := "Dentistry"
	c, err := m.Update("2", Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Dentistry", c.Name)
	assert.True(t, c.IsActive)
	assert.Equal(t, DefaultAverageWait, c.Stats.AverageWaitTimeMinutes)

	neg := -3
	_, err = m.Update("2", Patch{CurrentTicket: &neg})
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = m.Update("missing", Patch{Name: &name})
	assert.ErrorIs(t, err, ErrCounterNotFound)
}

func TestCounter_ReturnsCopy(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Enqueue("1", 1)
	require.NoError(t, err)

	c, _ := m.Counter("1")
	c.Queue[0].Number = 42
	c.CurrentTicket = 99

	fresh, _ := m.Counter("1")
	assert.Equal(t, 1, fresh.Queue[0].Number)
	assert.Equal(t, 0, fresh.CurrentTicket)
}

func TestExportImport(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Specific("1", 20)
	require.NoError(t, err)
	_, err = m.Enqueue("2", 3)
	require.NoError(t, err)

	snap := m.Export()

	other, _ := newTestManager(t)
	other.Import(snap)

	c, ok := other.Counter("1")
	require.True(t, ok)
	assert.Equal(t, 20, c.CurrentTicket)
	assert.Equal(t, 1, other.QueueLength("2"))
	assert.Equal(t, m.History(0), other.History(0))
}

func TestClearAll(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Advance("1")
	require.NoError(t, err)
	_, err = m.Enqueue("2", 8)
	require.NoError(t, err)

	m.ClearAll()

	for _, c := range m.Counters() {
		assert.Equal(t, 0, c.CurrentTicket)
		assert.Empty(t, c.Queue)
	}
	assert.Empty(t, m.History(0))
}

func TestInitialize_SkipsDuplicateIDs(t *testing.T) {
	m := NewManager([]CounterConfig{{ID: "a"}, {ID: "a", Name: "dup"}, {ID: "b"}})
	assert.Len(t, m.Counters(), 2)

	c, _ := m.Counter("a")
	assert.Empty(t, c.Name)
}

func TestInitialize_RebuildsCountersKeepsHistory(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Specific("1", 9)
	require.NoError(t, err)

	m.Initialize([]CounterConfig{{ID: "1", Name: "Pediatrics"}, {ID: "3", Name: "Eyes"}})

	counters := m.Counters()
	require.Len(t, counters, 2)
	assert.Equal(t, "Pediatrics", counters[0].Name)
	assert.Equal(t, 0, counters[0].CurrentTicket)
	assert.Equal(t, "3", counters[1].ID)

	_, ok := m.Counter("2")
	assert.False(t, ok)
	assert.Len(t, m.History(0), 1)
}

func TestImport_NormalisesCounters(t *testing.T) {
	m, clock := newTestManager(t)

	bad := NewCounter(CounterConfig{ID: "1", Name: "Family Medicine"})
	bad.CurrentTicket = -7
	bad.Queue = []QueueEntry{
		{Number: 3, EnqueuedAt: clock.Now(), Status: StatusWaiting},
		{Number: 3, EnqueuedAt: clock.Now().Add(time.Minute), Status: StatusCalled},
		{Number: 4, EnqueuedAt: clock.Now(), Status: StatusWaiting},
	}
	noQueue := NewCounter(CounterConfig{ID: "2", Name: "Dental"})
	noQueue.Queue = nil

	m.Import(Snapshot{Counters: []Counter{bad, noQueue}})

	c, ok := m.Counter("1")
	require.True(t, ok)
	assert.Equal(t, 0, c.CurrentTicket)
	require.Len(t, c.Queue, 2)
	assert.Equal(t, 3, c.Queue[0].Number)
	assert.Equal(t, StatusWaiting, c.Queue[0].Status)
	assert.Equal(t, 4, c.Queue[1].Number)

	c, ok = m.Counter("2")
	require.True(t, ok)
	assert.NotNil(t, c.Queue)
	assert.Empty(t, c.Queue)

	ev, err := m.Advance("1")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.TicketNumber)
}
