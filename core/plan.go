package core

// DefaultCalculatorTool is the tool name used when the planner does not name
// one explicitly.
const DefaultCalculatorTool = "code_executor"

// CalculatorPlan is a structured, user-confirmable description of a pending
// calculation. Plans are drafted by the decision engine, persisted with an
// owner and a TTL, and become executable exactly once.
type CalculatorPlan struct {
	PlanID      string `json:"plan_id"`
	Description string `json:"description"`
	// Variables holds the inferred calculation inputs. A "code" entry, when
	// present, carries the script body handed to the sandbox.
	Variables       map[string]any `json:"variables"`
	Formulas        []string       `json:"formulas,omitempty"`
	SuggestedTool   string         `json:"suggested_tool"`
	Followups       []string       `json:"followups,omitempty"`
	OriginalMessage Message        `json:"original_message"`
}

// PlanFields is the planner output before a plan identity and owner are
// attached. Missing fields have already been coerced to safe zero values.
type PlanFields struct {
	Description   string         `json:"description"`
	Variables     map[string]any `json:"variables"`
	Formulas      []string       `json:"formulas"`
	SuggestedTool string         `json:"suggested_tool"`
	Followups     []string       `json:"followups"`
}

// PlanRecord is the persisted envelope for a pending plan: the plan itself
// plus the owning user, the originating decision and the knowledge hits that
// informed it.
type PlanRecord struct {
	Plan     CalculatorPlan        `json:"plan"`
	UserID   string                `json:"user_id"`
	Decision OrchestrationDecision `json:"decision"`
	Hits     []KnowledgeSearchHit  `json:"knowledge,omitempty"`
}
