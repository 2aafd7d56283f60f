package memory

import "sync"

// Turn is one exchange between the user and the assistant.
type Turn struct {
	User      string
	Assistant string
}

// ShortTerm keeps the most recent turns, dropping the oldest beyond its capacity.
type ShortTerm struct {
	mu    sync.Mutex
	cap   int
	turns []Turn
}

// NewShortTerm returns a window holding up to capacity turns.
func NewShortTerm(capacity int) *ShortTerm {
	if capacity < 0 {
		capacity = 0
	}
	return &ShortTerm{cap: capacity}
}

// Add appends a turn.
func (s *ShortTerm) Add(t Turn) {
	if s.cap == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == s.cap {
		copy(s.turns, s.turns[1:])
		s.turns = s.turns[:s.cap-1]
	}
	s.turns = append(s.turns, t)
}

// Turns returns the retained turns, oldest first.
func (s *ShortTerm) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Len returns the number of retained turns.
func (s *ShortTerm) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
