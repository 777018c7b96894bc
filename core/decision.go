package core

// Mode is the two-way routing verdict produced by the decision engine.
type Mode string

const (
	// ModeAdvisor routes the message into the free-form advisory branch.
	ModeAdvisor Mode = "advisor"
	// ModeCalculator routes the message into the confirm-then-execute
	// calculation branch.
	ModeCalculator Mode = "calculator"
)

// OrchestrationDecision is the structured classification of one inbound
// message. It is produced once per message and never mutated afterwards.
type OrchestrationDecision struct {
	Mode Mode `json:"mode"`
	// Summary is an optional free-text note from the classifier.
	Summary string `json:"summary,omitempty"`
	// CalculatorInstructions steer the subsequent plan drafting step when
	// Mode is ModeCalculator.
	CalculatorInstructions string         `json:"calculator_instructions,omitempty"`
	ToolCalls              []string       `json:"tool_calls,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
}

// IsCalculator reports whether the decision selected the calculator branch.
func (d OrchestrationDecision) IsCalculator() bool { return d.Mode == ModeCalculator }
