// Package plan owns the confirm-then-execute lifecycle of calculation plans.
// A drafted plan is persisted with its owner and a TTL, shown to the user for
// confirmation, and executable at most once: the record is removed as soon as
// an execution produced a result, so a duplicate confirmation cannot run the
// same calculation twice.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finpilot/conversation"
	"finpilot/core"
	"finpilot/knowledge"
	"finpilot/logging"
	"finpilot/orchestrator"
	"finpilot/store"
	"finpilot/tool"
)

// DefaultTTL is how long a drafted plan stays confirmable.
const DefaultTTL = 30 * time.Minute

// Manager persists drafted plans and drives their one-shot execution.
type Manager struct {
	store        *store.Resilient
	registry     *tool.Registry
	orchestrator *orchestrator.Engine
	knowledge    *knowledge.Base
	conversation *conversation.Manager
	ttl          time.Duration
	logger       logging.Logger
}

// ManagerOptions configure a plan Manager.
type ManagerOptions struct {
	// TTL bounds how long a plan stays confirmable. Zero means DefaultTTL.
	TTL    time.Duration
	Logger logging.Logger
}

// NewManager wires the plan lifecycle over its collaborators.
func NewManager(st *store.Resilient, registry *tool.Registry, orch *orchestrator.Engine, kb *knowledge.Base, conv *conversation.Manager, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{TTL: DefaultTTL, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Manager{
		store:        st,
		registry:     registry,
		orchestrator: orch,
		knowledge:    kb,
		conversation: conv,
		ttl:          opts.TTL,
		logger:       opts.Logger,
	}
}

func planKey(planID string) string { return "plan:" + planID }

// Create assigns the drafted fields a fresh identity, persists the record
// with its owner and supporting context, and returns the plan for the
// confirmation reply.
func (m *Manager) Create(ctx context.Context, userID string, decision core.OrchestrationDecision, fields core.PlanFields, originalMsg core.Message, hits []core.KnowledgeSearchHit) core.CalculatorPlan {
	planID := uuid.NewString()
	suggested := fields.SuggestedTool
	if suggested == "" {
		suggested = core.DefaultCalculatorTool
	}
	plan := core.CalculatorPlan{
		PlanID:          planID,
		Description:     fields.Description,
		Variables:       fields.Variables,
		Formulas:        fields.Formulas,
		SuggestedTool:   suggested,
		Followups:       fields.Followups,
		OriginalMessage: originalMsg,
	}
	record := core.PlanRecord{Plan: plan, UserID: userID, Decision: decision, Hits: hits}
	m.store.SetJSON(ctx, planKey(planID), record, m.ttl)
	m.logger.Info("plan created", "plan_id", planID, "user_id", userID, "tool", suggested)
	return plan
}

// Execute runs a previously confirmed plan. Absent or expired plans yield
// ErrPlanNotFound; an owner mismatch yields ErrPlanForbidden and leaves the
// record untouched. On success the record is deleted before returning, so a
// repeated confirmation of the same plan surfaces ErrPlanNotFound.
func (m *Manager) Execute(ctx context.Context, planID, userID string) (core.ChatResponse, error) {
	key := planKey(planID)
	var record core.PlanRecord
	if !m.store.GetJSON(ctx, key, &record) {
		return core.ChatResponse{}, core.ErrPlanNotFound
	}
	if record.UserID != userID {
		m.logger.Warn("plan ownership mismatch", "plan_id", planID, "user_id", userID)
		return core.ChatResponse{}, core.ErrPlanForbidden
	}
	if !m.registry.Has(record.Plan.SuggestedTool) {
		// validation failure, the record stays until its TTL elapses
		return core.ChatResponse{}, fmt.Errorf("%w: %s", core.ErrUnknownTool, record.Plan.SuggestedTool)
	}

	variables := make(map[string]any, len(record.Plan.Variables))
	for k, v := range record.Plan.Variables {
		variables[k] = v
	}
	code, _ := variables["code"].(string)
	delete(variables, "code")

	req := core.ToolExecutionRequest{
		Name:      record.Plan.SuggestedTool,
		Code:      code,
		Variables: variables,
		Rationale: record.Plan.Description,
	}
	result := m.registry.Execute(ctx, req)
	results := []core.ToolExecutionResult{result}

	replyText, err := m.orchestrator.DraftCalculatorReply(ctx, record.Plan, results)
	if err != nil {
		// the record stays so the user can retry once the provider recovers
		return core.ChatResponse{}, fmt.Errorf("summarize plan %s: %w", planID, err)
	}

	reply := core.NewMessage(core.RoleAssistant, replyText).
		WithMetadata(map[string]any{"tools_used": []string{result.Name}})
	m.conversation.Append(ctx, userID, reply)
	m.knowledge.IndexDialog(ctx,
		fmt.Sprintf("calc:%s:%s", userID, uuid.NewString()),
		fmt.Sprintf("User: %s\nAssistant: %s", record.Plan.OriginalMessage.Content, replyText),
		map[string]any{"user_id": userID, "mode": string(core.ModeCalculator)},
	)

	m.store.Delete(ctx, key)
	m.logger.Info("plan executed", "plan_id", planID, "user_id", userID, "success", result.Success)

	return core.ChatResponse{
		Reply:       reply,
		Decision:    record.Decision,
		Hits:        record.Hits,
		ToolResults: results,
	}, nil
}
