package erasure

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

// State of an erasure job.
type State string

const (
	StateIdle           State = "Idle"
	StateValidating     State = "Validating"
	StateConfirming     State = "Confirming"
	StateFormatting     State = "Formatting"
	StateOverwriting    State = "Overwriting"
	StateRemovingHpaDco State = "RemovingHpaDco"
	StateWritingLog     State = "WritingLog"
	StateCompleted      State = "Completed"
	StateFailed         State = "Failed"
)

// IsTerminal reports whether the job has finished.
func IsTerminal(s State) bool {
	return s == StateCompleted || s == StateFailed
}

// IsDestructive reports whether the state changes device content.
func IsDestructive(s State) bool {
	switch s {
	case StateFormatting, StateOverwriting, StateRemovingHpaDco:
		return true
	default:
		return false
	}
}

// Step is one entry of the job history. Pass is set for Overwriting only.
type Step struct {
	State State
	Pass  int
}

func (s Step) String() string {
	if s.State == StateOverwriting {
		return fmt.Sprintf("%s(%d)", s.State, s.Pass)
	}
	return string(s.State)
}

// machine tracks the current step and rejects transitions outside the table.
type machine struct {
	cur     Step
	history []Step
}

func newMachine() *machine {
	start := Step{State: StateIdle}
	return &machine{cur: start, history: []Step{start}}
}

func (m *machine) Current() Step { return m.cur }

func (m *machine) History() []Step { return append([]Step(nil), m.history...) }

// Transition moves the machine to next. passCount bounds Overwriting steps.
func (m *machine) Transition(next Step, passCount int) error {
	if !isAllowedTransition(m.cur, next, passCount) {
		return cerr.Newf("disallowed transition: %s -> %s", m.cur, next)
	}
	m.cur = next
	m.history = append(m.history, next)
	return nil
}

func isAllowedTransition(from, to Step, passCount int) bool {
	if to.State == StateFailed {
		return !IsTerminal(from.State)
	}
	switch from.State {
	case StateIdle:
		return to.State == StateValidating
	case StateValidating:
		return to.State == StateConfirming
	case StateConfirming:
		return to.State == StateIdle || to.State == StateFormatting
	case StateFormatting:
		return to.State == StateOverwriting && to.Pass == 0
	case StateOverwriting:
		last := from.Pass+1 >= passCount
		switch to.State {
		case StateOverwriting:
			return to.Pass == from.Pass+1 && to.Pass < passCount
		case StateRemovingHpaDco, StateWritingLog:
			return last
		}
		return false
	case StateRemovingHpaDco:
		return to.State == StateWritingLog
	case StateWritingLog:
		return to.State == StateCompleted
	default:
		return false
	}
}
