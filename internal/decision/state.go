package decision

import (
	"fmt"

	"deal-eval/backend/internal/deal"
)

// machine enforces Evaluating -> {Blocked, Approved, ConditionallyApproved}.
type machine struct {
	state deal.DecisionState
}

func newMachine() *machine {
	return &machine{state: deal.StateEvaluating}
}

func (m *machine) transition(to deal.DecisionState) error {
	if m.state.Terminal() || !to.Terminal() {
		return &deal.ComputationInconsistencyError{
			Stage:  "decision",
			Reason: fmt.Sprintf("illegal transition %s -> %s", m.state, to),
		}
	}
	m.state = to
	return nil
}
