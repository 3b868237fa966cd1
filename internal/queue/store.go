package queue

import "time"

// Patch lists the counter fields to replace. Nil fields are left untouched.
type Patch struct {
	Name          *string
	CurrentTicket *int
	// Queue replaces the whole queue when non-nil; pass an empty slice to clear it.
	Queue         []QueueEntry
	IsActive      *bool
	Stats         *Stats
	LastCallAt    *time.Time
	ClearLastCall bool
}

// Store holds the counters of one session in configuration order.
type Store struct {
	counters []Counter
	index    map[string]int
}

func NewStore(configs []CounterConfig) *Store {
	s := &Store{}
	s.initialize(configs)
	return s
}

func (s *Store) initialize(configs []CounterConfig) {
	s.counters = make([]Counter, 0, len(configs))
	s.index = make(map[string]int, len(configs))
	for _, cfg := range configs {
		if _, dup := s.index[cfg.ID]; dup {
			continue
		}
		s.index[cfg.ID] = len(s.counters)
		s.counters = append(s.counters, NewCounter(cfg))
	}
}

func (s *Store) replace(counters []Counter) {
	s.counters = make([]Counter, 0, len(counters))
	s.index = make(map[string]int, len(counters))
	for _, c := range counters {
		if _, dup := s.index[c.ID]; dup {
			continue
		}
		c = c.clone()
		c.CurrentTicket = max(0, c.CurrentTicket)
		c.Queue = uniqueEntries(c.Queue)
		s.index[c.ID] = len(s.counters)
		s.counters = append(s.counters, c)
	}
}

func (s *Store) Get(id string) (Counter, bool) {
	i, ok := s.index[id]
	if !ok {
		return Counter{}, false
	}
	return s.counters[i].clone(), true
}

func (s *Store) Update(id string, p Patch) (Counter, bool) {
	i, ok := s.index[id]
	if !ok {
		return Counter{}, false
	}

	c := &s.counters[i]
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.CurrentTicket != nil {
		c.CurrentTicket = *p.CurrentTicket
	}
	if p.Queue != nil {
		c.Queue = append([]QueueEntry{}, p.Queue...)
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.Stats != nil {
		c.Stats = *p.Stats
	}
	if p.LastCallAt != nil {
		t := *p.LastCallAt
		c.LastCallAt = &t
	}
	if p.ClearLastCall {
		c.LastCallAt = nil
	}

	return c.clone(), true
}

func (s *Store) All() []Counter {
	out := make([]Counter, 0, len(s.counters))
	for _, c := range s.counters {
		out = append(out, c.clone())
	}
	return out
}

func (s *Store) Active() []Counter {
	var out []Counter
	for _, c := range s.counters {
		if c.IsActive {
			out = append(out, c.clone())
		}
	}
	return out
}

// uniqueEntries drops repeated ticket numbers, keeping the first entry.
func uniqueEntries(q []QueueEntry) []QueueEntry {
	out := make([]QueueEntry, 0, len(q))
	seen := make(map[int]bool, len(q))
	for _, e := range q {
		if seen[e.Number] {
			continue
		}
		seen[e.Number] = true
		out = append(out, e)
	}
	return out
}
