package core

// ChatRequest is the inbound message payload submitted by the transport layer.
type ChatRequest struct {
	UserID   string         `json:"user_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PlanExecutionRequest confirms a previously drafted plan for execution.
type PlanExecutionRequest struct {
	PlanID string `json:"plan_id"`
	UserID string `json:"user_id"`
}

// ChatResponse is returned for both the message and the plan execution
// operations. ToolResults is empty on the advisor branch.
type ChatResponse struct {
	Reply       Message               `json:"reply"`
	Decision    OrchestrationDecision `json:"decision"`
	Hits        []KnowledgeSearchHit  `json:"knowledge_hits"`
	ToolResults []ToolExecutionResult `json:"tool_results"`
}
