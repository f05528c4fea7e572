package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/govtag/internal/model"
)

// State is a TagEngine pipeline state.
//
//	Idle → Verifying → Computing → Gated → Tagging → Done
//
// Failed is terminal and reachable from every non-terminal state.
type State string

const (
	StateIdle      State = "idle"
	StateVerifying State = "verifying"
	StateComputing State = "computing"
	StateGated     State = "gated"
	StateTagging   State = "tagging"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

var nextState = map[State]State{
	StateIdle:      StateVerifying,
	StateVerifying: StateComputing,
	StateComputing: StateGated,
	StateGated:     StateTagging,
	StateTagging:   StateDone,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition records one state change. Reason is the error code on Failed.
type Transition struct {
	From   State           `json:"from"`
	To     State           `json:"to"`
	Reason model.ErrorCode `json:"reason,omitempty"`
}

// machine tracks a single run's progress through the pipeline.
// It is owned by one Tag call and never shared.
type machine struct {
	state       State
	transitions []Transition
	logger      *slog.Logger
}

func newMachine(logger *slog.Logger) *machine {
	return &machine{state: StateIdle, logger: logger}
}

// advance moves to the next state in the fixed sequence.
// Panics if to is not the successor of the current state; that is a
// programming error in the engine, not a runtime condition.
func (m *machine) advance(to State) {
	if nextState[m.state] != to {
		panic(fmt.Sprintf("engine: invalid transition %s -> %s", m.state, to))
	}
	m.record(Transition{From: m.state, To: to})
}

// fail moves to Failed and returns err unchanged for the caller to propagate.
func (m *machine) fail(err error) error {
	if m.state.Terminal() {
		panic(fmt.Sprintf("engine: fail from terminal state %s", m.state))
	}
	reason := model.CodeOf(err)
	m.record(Transition{From: m.state, To: StateFailed, Reason: reason})
	m.logger.Error("run failed", "reason", reason, "error", err)
	return err
}

func (m *machine) record(t Transition) {
	m.transitions = append(m.transitions, t)
	m.state = t.To
	m.logger.Debug("state transition", "from", t.From, "to", t.To)
}
