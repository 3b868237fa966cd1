package queue

import (
	"math"
	"time"
)

// updateStats counts a forward call and refreshes the rolling wait estimate
// from the counter's most recent calls.
func (m *Manager) updateStats(id string, now time.Time) {
	c, ok := m.counters.Get(id)
	if !ok {
		return
	}

	st := c.Stats
	st.TotalCalled++

	if avg, ok := averageInterval(m.history.ForCounter(id, recentWindow)); ok {
		st.AverageWaitTimeMinutes = avg
	}

	t := now
	st.LastCallTime = &t
	m.counters.Update(id, Patch{Stats: &st})
}

// averageInterval averages the gaps between consecutive newest-first events,
// in minutes rounded to one decimal. It needs at least two events.
func averageInterval(events []CallEvent) (float64, bool) {
	if len(events) < 2 {
		return 0, false
	}

	var sum float64
	for i := 0; i < len(events)-1; i++ {
		sum += events[i].Timestamp.Sub(events[i+1].Timestamp).Minutes()
	}
	avg := sum / float64(len(events)-1)
	return math.Round(avg*10) / 10, true
}

func (m *Manager) CounterStats(id string) (CounterStats, error) {
	c, ok := m.counters.Get(id)
	if !ok {
		return CounterStats{}, ErrCounterNotFound
	}
	return CounterStats{
		CurrentTicket:          c.CurrentTicket,
		TotalCalled:            c.Stats.TotalCalled,
		AverageWaitTimeMinutes: c.Stats.AverageWaitTimeMinutes,
		QueueLength:            len(c.Queue),
		IsActive:               c.IsActive,
		LastCall:               c.LastCallAt,
	}, nil
}

func (m *Manager) OverallStats() OverallStats {
	out := OverallStats{
		RecentCalls: m.history.Recent(5),
	}
	for _, c := range m.counters.All() {
		out.TotalCounters++
		if c.IsActive {
			out.ActiveCounters++
		}
		out.TotalTicketsCalled += c.Stats.TotalCalled
		out.TotalInQueue += len(c.Queue)
	}
	return out
}

// EstimatedWait is the expected wait in minutes before ticket is called at a
// counter. Tickets at or behind the current one wait zero.
func (m *Manager) EstimatedWait(id string, ticket int) float64 {
	c, ok := m.counters.Get(id)
	if !ok {
		return 0
	}
	position := ticket - c.CurrentTicket
	if position <= 0 {
		return 0
	}
	avg := c.Stats.AverageWaitTimeMinutes
	if avg <= 0 {
		avg = DefaultAverageWait
	}
	return float64(position) * avg
}
