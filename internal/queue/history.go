package queue

// History is the newest-first call log. Once it grows past its capacity the
// oldest events are dropped.
type History struct {
	capacity int
	events   []CallEvent
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

func (h *History) Push(e CallEvent) {
	h.events = append(h.events, CallEvent{})
	copy(h.events[1:], h.events)
	h.events[0] = e

	if len(h.events) > h.capacity {
		h.events = h.events[:h.capacity]
	}
}

// Recent returns up to limit of the newest events.
func (h *History) Recent(limit int) []CallEvent {
	if limit <= 0 || limit > len(h.events) {
		limit = len(h.events)
	}
	return append([]CallEvent{}, h.events[:limit]...)
}

// ForCounter returns up to limit of the newest events of one counter.
func (h *History) ForCounter(counterID string, limit int) []CallEvent {
	var out []CallEvent
	for _, e := range h.events {
		if limit > 0 && len(out) == limit {
			break
		}
		if e.CounterID == counterID {
			out = append(out, e)
		}
	}
	return out
}

func (h *History) Len() int      { return len(h.events) }
func (h *History) Capacity() int { return h.capacity }

func (h *History) Clear() {
	h.events = nil
}

func (h *History) replace(events []CallEvent) {
	h.events = append([]CallEvent{}, events...)
	if len(h.events) > h.capacity {
		h.events = h.events[:h.capacity]
	}
}
