package research

import (
	"errors"
	"fmt"
)

// ErrEmptyTopic is returned when Run is called without a topic.
var ErrEmptyTopic = errors.New("research topic cannot be empty")

// Phase names the step of the protocol a failure happened in.
type Phase string

const (
	PhasePlan       Phase = "planning"
	PhaseSummarize  Phase = "summarization"
	PhaseEvaluate   Phase = "follow-up evaluation"
	PhaseSynthesize Phase = "synthesis"
)

// PhaseError is a fatal generation failure that aborted a run.
type PhaseError struct {
	Phase     Phase
	Iteration int
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed in round %d: %v", e.Phase, e.Iteration, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
