package core

// ToolExecutionRequest asks the tool registry to run a named tool against a
// script body and a set of input variables.
type ToolExecutionRequest struct {
	Name      string         `json:"name"`
	Code      string         `json:"code"`
	Variables map[string]any `json:"variables,omitempty"`
	Rationale string         `json:"rationale,omitempty"`
}

// ToolExecutionResult is the outcome of one tool run. It is never partially
// populated: Success implies Output, failure implies a non-empty Error.
// Output captured before a fault is preserved alongside the error.
type ToolExecutionResult struct {
	Name       string `json:"name"`
	Output     string `json:"output"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}
