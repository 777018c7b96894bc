// Package orchestrator is the decision engine: it classifies each inbound
// message into the advisor or calculator branch and drafts the texts each
// branch needs. All prompt assembly lives here so the surrounding flow stays
// free of model-facing details.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finpilot/core"
	"finpilot/internal/util"
	"finpilot/logging"
	"finpilot/model"
)

// historyWindow bounds how many trailing turns the classification prompt
// carries; replyHistoryWindow bounds the advisory reply prompt.
const (
	historyWindow      = 8
	replyHistoryWindow = 6
	snippetLimit       = 512
)

// companyProfileSource marks the synthetic knowledge hit carrying the user's
// company profile; it is pulled out of the hit list and given its own prompt
// section.
const companyProfileSource = "company_profile"

var decisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"mode": map[string]any{
			"type": "string",
			"enum": []string{string(core.ModeAdvisor), string(core.ModeCalculator)},
		},
		"summary":                 map[string]any{"type": "string"},
		"calculator_instructions": map[string]any{"type": "string"},
		"tool_calls":              map[string]any{"type": "array"},
		"metadata":                map[string]any{"type": "object"},
	},
	"required": []string{"mode"},
}

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description":    map[string]any{"type": "string"},
		"variables":      map[string]any{"type": "object"},
		"formulas":       map[string]any{"type": "array"},
		"suggested_tool": map[string]any{"type": "string"},
		"followups":      map[string]any{"type": "array"},
	},
	"required": []string{"description", "variables"},
}

// Engine routes messages and drafts branch texts through one Generator.
type Engine struct {
	generator model.Generator
	logger    logging.Logger
}

// EngineOptions configure an orchestrator Engine.
type EngineOptions struct {
	Logger logging.Logger
}

// NewEngine constructs the decision engine over a text generator.
func NewEngine(generator model.Generator, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{generator: generator, logger: opts.Logger}
}

// Decide classifies the message into one of the two branches. A provider
// failure is fatal for this call: without a verdict there is no safe branch
// to take. A structurally empty verdict defaults to the advisor branch.
func (e *Engine) Decide(ctx context.Context, msg core.Message, history []core.Message, knowledge core.KnowledgeSearchResponse) (core.OrchestrationDecision, error) {
	prompt := e.buildDecisionPrompt(msg, history, knowledge)
	obj, err := e.generator.GenerateStructured(ctx, prompt, decisionSchema)
	if err != nil {
		return core.OrchestrationDecision{}, fmt.Errorf("orchestration decision: %w", err)
	}
	e.logger.Debug("decision raw object", "object", obj)

	decision := core.OrchestrationDecision{
		Mode:                   core.Mode(util.GetString(obj, "mode", string(core.ModeAdvisor))),
		Summary:                util.GetString(obj, "summary", ""),
		CalculatorInstructions: util.GetString(obj, "calculator_instructions", ""),
		ToolCalls:              util.GetStringSlice(obj, "tool_calls"),
		Metadata:               util.GetObject(obj, "metadata"),
	}
	if decision.Mode != core.ModeAdvisor && decision.Mode != core.ModeCalculator {
		e.logger.Warn("unrecognized mode, defaulting to advisor", "mode", decision.Mode)
		decision.Mode = core.ModeAdvisor
	}
	return decision, nil
}

// DraftAdvisorReply produces the free-form advisory answer.
func (e *Engine) DraftAdvisorReply(ctx context.Context, msg core.Message, history []core.Message, knowledge core.KnowledgeSearchResponse) (string, error) {
	companyInfo, other := splitCompanyProfile(knowledge.Hits)

	var b strings.Builder
	b.WriteString("You are Alfa Pilot AI advisor. Use the conversation history, company information, and knowledge base extracts to craft a concise, actionable reply.\n\n")
	if companyInfo != "" {
		fmt.Fprintf(&b, "Информация о компании пользователя:\n%s\n\n", companyInfo)
	}
	b.WriteString("Conversation history (last turns):\n")
	writeHistory(&b, history, replyHistoryWindow)
	b.WriteString("\nKnowledge base context:\n")
	if len(other) == 0 {
		b.WriteString("No extra context.\n")
	} else {
		for _, hit := range other {
			fmt.Fprintf(&b, "- %s\n", truncate(hit.Text, snippetLimit))
		}
	}
	fmt.Fprintf(&b, "\nUser message:\n%s\n\n", msg.Content)
	b.WriteString("Provide a professional, helpful answer in Russian. Include bullet points where it improves clarity.\n")
	b.WriteString("If the user asks about the company name or details, prioritize the company information provided at the beginning of this prompt.")

	reply, err := e.generator.GenerateText(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("advisor reply: %w", err)
	}
	return reply, nil
}

// DraftCalculatorPlan produces structured calculation parameters. Missing
// fields coerce to safe defaults so the confirmation step always has a
// complete plan to show.
func (e *Engine) DraftCalculatorPlan(ctx context.Context, msg core.Message, knowledge core.KnowledgeSearchResponse, instructions string) (core.PlanFields, error) {
	var b strings.Builder
	b.WriteString("You are Alfa Pilot AI planner preparing structured parameters for a financial calculation.\n")
	fmt.Fprintf(&b, "User request: %s\n", msg.Content)
	b.WriteString("Supplemental knowledge:\n")
	if len(knowledge.Hits) == 0 {
		b.WriteString("None\n")
	} else {
		for _, hit := range knowledge.Hits {
			fmt.Fprintf(&b, "- %s\n", truncate(hit.Text, snippetLimit))
		}
	}
	b.WriteString("\nDescribe the inputs, assumptions, and formulas needed to calculate the result. Output a JSON with keys:\n")
	b.WriteString("- description: textual explanation for the confirmation step\n")
	b.WriteString("- variables: object with numeric or textual parameters inferred\n")
	b.WriteString("- formulas: list of textual formula descriptions\n")
	fmt.Fprintf(&b, "- suggested_tool: name of tool to execute (%s by default)\n", core.DefaultCalculatorTool)
	b.WriteString("- followups: array of optional questions to clarify uncertainties")
	if instructions != "" {
		fmt.Fprintf(&b, "\nAdditional calculator instructions from planner: %s", instructions)
	}

	obj, err := e.generator.GenerateStructured(ctx, b.String(), planSchema)
	if err != nil {
		return core.PlanFields{}, fmt.Errorf("calculator plan: %w", err)
	}
	fields := core.PlanFields{
		Description:   util.GetString(obj, "description", ""),
		Variables:     util.GetObject(obj, "variables"),
		Formulas:      util.GetStringSlice(obj, "formulas"),
		SuggestedTool: util.GetString(obj, "suggested_tool", core.DefaultCalculatorTool),
		Followups:     util.GetStringSlice(obj, "followups"),
	}
	if fields.Variables == nil {
		fields.Variables = map[string]any{}
	}
	if fields.Formulas == nil {
		fields.Formulas = []string{}
	}
	if fields.Followups == nil {
		fields.Followups = []string{}
	}
	return fields, nil
}

// DraftCalculatorReply summarizes an executed plan and its tool results.
func (e *Engine) DraftCalculatorReply(ctx context.Context, plan core.CalculatorPlan, results []core.ToolExecutionResult) (string, error) {
	planJSON, _ := json.Marshal(plan)
	resultsJSON, _ := json.Marshal(results)

	var b strings.Builder
	b.WriteString("You are Alfa Pilot AI. Summarize the calculation for the user using the plan and tool execution results.\n\n")
	fmt.Fprintf(&b, "Plan: %s\n", planJSON)
	fmt.Fprintf(&b, "Tool results: %s\n\n", resultsJSON)
	b.WriteString("Respond in Russian, highlight methodology, assumptions, and final values. Provide next-step recommendations if relevant.")

	reply, err := e.generator.GenerateText(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("calculator reply: %w", err)
	}
	return reply, nil
}

func (e *Engine) buildDecisionPrompt(msg core.Message, history []core.Message, knowledge core.KnowledgeSearchResponse) string {
	companyInfo, other := splitCompanyProfile(knowledge.Hits)

	var b strings.Builder
	b.WriteString("You are Alfa Pilot, an AI that assists SMEs with finance tasks and planning.\n")
	b.WriteString("Analyze the user message and decide whether it requests advisory response or a calculator-based computation.\n\n")
	if companyInfo != "" {
		fmt.Fprintf(&b, "Company information:\n%s\n\n", companyInfo)
	}
	b.WriteString("Conversation history:\n")
	writeHistory(&b, history, historyWindow)
	b.WriteString("\nKnowledge base context:\n")
	if len(other) == 0 {
		b.WriteString("No relevant documents.\n")
	} else {
		for _, hit := range other {
			fmt.Fprintf(&b, "Score %.2f | %s\n", hit.Score, truncate(hit.Text, snippetLimit))
		}
	}
	fmt.Fprintf(&b, "\nCurrent user message:\n%s\n\n", msg.Content)
	b.WriteString("Respond with JSON describing the mode selection. ")
	b.WriteString(`Select "calculator" whenever the user expects numbers, forecasting, budgeting, cost breakdowns or explicit calculations; otherwise choose "advisor". `)
	fmt.Fprintf(&b, "When choosing calculator, outline calculator instructions to confirm with the user and name required tool calls if any (e.g., %s).", core.DefaultCalculatorTool)
	return b.String()
}

// splitCompanyProfile pulls the company-profile hit (if any) out of the list
// so prompts can present it ahead of ordinary retrieval context.
func splitCompanyProfile(hits []core.KnowledgeSearchHit) (string, []core.KnowledgeSearchHit) {
	companyInfo := ""
	other := make([]core.KnowledgeSearchHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Metadata != nil && hit.Metadata["source"] == companyProfileSource {
			companyInfo = hit.Text
			continue
		}
		other = append(other, hit)
	}
	return companyInfo, other
}

func writeHistory(b *strings.Builder, history []core.Message, window int) {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	for _, item := range history {
		fmt.Fprintf(b, "%s: %s\n", item.Role, item.Content)
	}
}

// truncate cuts text to at most limit characters, counting runes so
// multi-byte text is never split mid-character.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
