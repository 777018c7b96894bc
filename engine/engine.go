// Package engine wires the full message flow: conversation history, company
// profile context, knowledge retrieval, branch decision, and the advisor and
// calculator branches. It is the single entry point transports call into.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"finpilot/conversation"
	"finpilot/core"
	"finpilot/knowledge"
	"finpilot/logging"
	"finpilot/orchestrator"
	"finpilot/plan"
	"finpilot/store"
)

// Default retrieval and history parameters.
const (
	DefaultSearchK      = 5
	DefaultHistoryLimit = 8
)

// companyProfileScore ranks the synthetic profile hit above any retrieved
// document.
const companyProfileScore = 10.0

// companyKeywords trigger the company-profile injection: only questions that
// plausibly concern the user's own business get the profile prepended.
var companyKeywords = []string{
	"компания", "называется", "название", "организация", "фирма",
	"наша", "моей", "моя", "мы",
}

// Engine orchestrates one user request end to end.
type Engine struct {
	store        *store.Resilient
	conversation *conversation.Manager
	knowledge    *knowledge.Base
	orchestrator *orchestrator.Engine
	plans        *plan.Manager
	searchK      int
	historyLimit int
	logger       logging.Logger
}

// Options configure an Engine.
type Options struct {
	// SearchK is how many knowledge hits each request retrieves.
	SearchK int
	// HistoryLimit is how many trailing turns feed the prompts.
	HistoryLimit int
	Logger       logging.Logger
}

// New wires the engine over its collaborators.
func New(st *store.Resilient, conv *conversation.Manager, kb *knowledge.Base, orch *orchestrator.Engine, plans *plan.Manager, optFns ...func(o *Options)) *Engine {
	opts := Options{SearchK: DefaultSearchK, HistoryLimit: DefaultHistoryLimit, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SearchK <= 0 {
		opts.SearchK = DefaultSearchK
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{
		store:        st,
		conversation: conv,
		knowledge:    kb,
		orchestrator: orch,
		plans:        plans,
		searchK:      opts.SearchK,
		historyLimit: opts.HistoryLimit,
		logger:       opts.Logger,
	}
}

// ProcessMessage runs one inbound message through decision and the selected
// branch. Only provider unavailability surfaces as an error; storage and
// retrieval degradation is absorbed along the way.
func (e *Engine) ProcessMessage(ctx context.Context, req core.ChatRequest) (resp core.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("message processing panicked", "user_id", req.UserID, "panic", r)
			err = fmt.Errorf("message processing failed")
		}
	}()

	userMsg := core.NewMessage(core.RoleUser, req.Content).WithMetadata(req.Metadata)
	e.conversation.Append(ctx, req.UserID, userMsg)
	history := e.conversation.Recent(ctx, req.UserID, e.historyLimit)

	kn := e.knowledge.Search(ctx, req.Content, e.searchK)
	if info := e.companyProfileInfo(ctx, req.UserID); info != "" && isCompanyQuery(req.Content) {
		hit := core.KnowledgeSearchHit{
			ID:       "company_profile",
			Score:    companyProfileScore,
			Text:     info,
			Metadata: map[string]any{"source": "company_profile", "type": "company_info"},
		}
		kn.Hits = append([]core.KnowledgeSearchHit{hit}, kn.Hits...)
	}

	decision, err := e.orchestrator.Decide(ctx, userMsg, history, kn)
	if err != nil {
		return core.ChatResponse{}, err
	}
	e.logger.Info("message routed", "user_id", req.UserID, "mode", decision.Mode)

	if decision.IsCalculator() {
		return e.calculatorBranch(ctx, req, userMsg, decision, kn)
	}
	return e.advisorBranch(ctx, req, userMsg, history, decision, kn)
}

func (e *Engine) advisorBranch(ctx context.Context, req core.ChatRequest, userMsg core.Message, history []core.Message, decision core.OrchestrationDecision, kn core.KnowledgeSearchResponse) (core.ChatResponse, error) {
	replyText, err := e.orchestrator.DraftAdvisorReply(ctx, userMsg, history, kn)
	if err != nil {
		return core.ChatResponse{}, err
	}
	reply := core.NewMessage(core.RoleAssistant, replyText)
	e.conversation.Append(ctx, req.UserID, reply)

	// best effort; a degraded embedder just skips the dialog memory
	e.knowledge.IndexDialog(ctx,
		fmt.Sprintf("advisor:%s:%s", req.UserID, uuid.NewString()),
		fmt.Sprintf("User: %s\nAssistant: %s", req.Content, replyText),
		map[string]any{"user_id": req.UserID, "mode": string(core.ModeAdvisor)},
	)

	return core.ChatResponse{
		Reply:       reply,
		Decision:    decision,
		Hits:        kn.Hits,
		ToolResults: []core.ToolExecutionResult{},
	}, nil
}

func (e *Engine) calculatorBranch(ctx context.Context, req core.ChatRequest, userMsg core.Message, decision core.OrchestrationDecision, kn core.KnowledgeSearchResponse) (core.ChatResponse, error) {
	fields, err := e.orchestrator.DraftCalculatorPlan(ctx, userMsg, kn, decision.CalculatorInstructions)
	if err != nil {
		return core.ChatResponse{}, err
	}
	p := e.plans.Create(ctx, req.UserID, decision, fields, userMsg, kn.Hits)

	reply := core.NewMessage(core.RoleAssistant, confirmationText(p)).
		WithMetadata(map[string]any{"plan_id": p.PlanID, "followups": p.Followups})
	e.conversation.Append(ctx, req.UserID, reply)

	return core.ChatResponse{
		Reply:       reply,
		Decision:    decision,
		Hits:        kn.Hits,
		ToolResults: []core.ToolExecutionResult{},
	}, nil
}

// ExecutePlan confirms and runs a previously drafted plan.
func (e *Engine) ExecutePlan(ctx context.Context, req core.PlanExecutionRequest) (resp core.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("plan execution panicked", "plan_id", req.PlanID, "panic", r)
			err = fmt.Errorf("plan execution failed")
		}
	}()
	return e.plans.Execute(ctx, req.PlanID, req.UserID)
}

// ResetContext drops the user's conversation history.
func (e *Engine) ResetContext(ctx context.Context, userID string) {
	e.conversation.Reset(ctx, userID)
}

// companyProfileInfo renders the stored company profile as prompt-ready text,
// or "" when no usable profile exists.
func (e *Engine) companyProfileInfo(ctx context.Context, userID string) string {
	var profile map[string]any
	if !e.store.GetJSON(ctx, "company-profile:"+userID, &profile) {
		return ""
	}
	name, _ := profile["company_name"].(string)
	if name == "" {
		return ""
	}
	parts := []string{"Название компании: " + name}
	fields := []struct{ key, label string }{
		{"industry", "Индустрия"},
		{"employees", "Количество сотрудников"},
		{"annual_revenue", "Выручка"},
		{"goals", "Цели"},
	}
	for _, f := range fields {
		if v, ok := profile[f.key]; ok && v != nil && fmt.Sprint(v) != "" {
			parts = append(parts, fmt.Sprintf("%s: %v", f.label, v))
		}
	}
	return strings.Join(parts, "\n")
}

func isCompanyQuery(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range companyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// confirmationText renders the plan the way the confirmation reply shows it.
func confirmationText(p core.CalculatorPlan) string {
	varsJSON, _ := json.Marshal(p.Variables)
	var b strings.Builder
	b.WriteString("Я подготовил план расчёта. Подтвердите, пожалуйста, выполнение.\n")
	fmt.Fprintf(&b, "Описание: %s\n", p.Description)
	fmt.Fprintf(&b, "Переменные: %s\n", varsJSON)
	fmt.Fprintf(&b, "Формулы: %s", strings.Join(p.Formulas, "; "))
	return b.String()
}
