package room

// Phase represents the current phase of a round
type Phase string

const (
	PhaseAnswer      Phase = "ANSWER"       // Members writing answers to the prompt
	PhaseVote        Phase = "VOTE"         // Members voting anonymously on the worst answer
	PhaseResult      Phase = "RESULT"       // Round scores revealed
	PhaseFinalResult Phase = "FINAL_RESULT" // Round limit reached, game over until restart
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from the current phase to the target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseAnswer:      {PhaseVote},
		PhaseVote:        {PhaseResult},
		PhaseResult:      {PhaseAnswer, PhaseFinalResult},
		PhaseFinalResult: {PhaseAnswer}, // Explicit restart only
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
