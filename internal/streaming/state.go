package streaming

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is a step in the life of one download response.
type Phase int

const (
	Validating Phase = iota
	HeadersSent
	Streaming
	Completed
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Validating:
		return "validating"
	case HeadersSent:
		return "headers-sent"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == Completed || p == Aborted
}

// ErrIllegalTransition is returned for a transition the machine forbids.
var ErrIllegalTransition = errors.New("illegal stream state transition")

var transitions = map[Phase][]Phase{
	Validating: {HeadersSent},
	// A write failing on the very first chunk aborts straight from here.
	HeadersSent: {Streaming, Aborted},
	Streaming:   {Completed, Aborted},
}

// State tracks a download through Validating, HeadersSent and Streaming to
// Completed or Aborted. It is safe for concurrent use.
type State struct {
	mu    sync.Mutex
	phase Phase
}

// NewState returns a machine in the Validating phase.
func NewState() *State {
	return &State{phase: Validating}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// To moves the machine to next, or fails without changing it.
func (s *State) To(next Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.phase] {
		if allowed == next {
			s.phase = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.phase, next)
}

// Committed reports whether response headers have gone out, after which the
// HTTP status can no longer change.
func (s *State) Committed() bool {
	return s.Phase() != Validating
}
