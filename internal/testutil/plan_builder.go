package testutil

import "finpilot/core"

// PlanFieldsBuilder constructs planner output for tests.
// Example:
//
//	fields := NewPlanFieldsBuilder().
//		Description("ROI").
//		Var("budget", 100000.0).
//		Code("result = (revenue - budget) / budget").
//		Build()
type PlanFieldsBuilder struct {
	fields core.PlanFields
}

// NewPlanFieldsBuilder creates a builder with the default tool and empty
// collections.
func NewPlanFieldsBuilder() *PlanFieldsBuilder {
	return &PlanFieldsBuilder{fields: core.PlanFields{
		Variables:     map[string]any{},
		Formulas:      []string{},
		Followups:     []string{},
		SuggestedTool: core.DefaultCalculatorTool,
	}}
}

// Description sets the confirmation description (chainable).
func (b *PlanFieldsBuilder) Description(d string) *PlanFieldsBuilder {
	b.fields.Description = d
	return b
}

// Var adds one calculation input (chainable).
func (b *PlanFieldsBuilder) Var(name string, value any) *PlanFieldsBuilder {
	b.fields.Variables[name] = value
	return b
}

// Code sets the script body carried in the "code" variable (chainable).
func (b *PlanFieldsBuilder) Code(code string) *PlanFieldsBuilder {
	b.fields.Variables["code"] = code
	return b
}

// Formula appends one formula description (chainable).
func (b *PlanFieldsBuilder) Formula(f string) *PlanFieldsBuilder {
	b.fields.Formulas = append(b.fields.Formulas, f)
	return b
}

// Tool overrides the suggested tool name (chainable).
func (b *PlanFieldsBuilder) Tool(name string) *PlanFieldsBuilder {
	b.fields.SuggestedTool = name
	return b
}

// Followup appends one clarification question (chainable).
func (b *PlanFieldsBuilder) Followup(q string) *PlanFieldsBuilder {
	b.fields.Followups = append(b.fields.Followups, q)
	return b
}

// Build returns the assembled fields.
func (b *PlanFieldsBuilder) Build() core.PlanFields {
	return b.fields
}
