package plan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finpilot/conversation"
	"finpilot/core"
	"finpilot/internal/testutil"
	"finpilot/knowledge"
	"finpilot/model"
	"finpilot/orchestrator"
	"finpilot/store"
	"finpilot/tool"
)

// captureTool records the request it was dispatched and returns a fixed
// result.
type captureTool struct {
	name string
	last *core.ToolExecutionRequest
}

func (c *captureTool) Name() string        { return c.name }
func (c *captureTool) Description() string { return "capture tool" }
func (c *captureTool) Execute(_ context.Context, req core.ToolExecutionRequest) core.ToolExecutionResult {
	c.last = &req
	return core.ToolExecutionResult{Name: c.name, Success: true, Output: "result = 0.5", DurationMS: 3}
}

type fixture struct {
	manager *Manager
	tool    *captureTool
	conv    *conversation.Manager
	store   *store.Resilient
}

func newFixture(t *testing.T, optFns ...func(o *ManagerOptions)) *fixture {
	t.Helper()
	st := store.NewResilient(nil)
	return newFixtureWithStore(t, st, optFns...)
}

func newFixtureWithStore(t *testing.T, st *store.Resilient, optFns ...func(o *ManagerOptions)) *fixture {
	t.Helper()
	capture := &captureTool{name: core.DefaultCalculatorTool}
	registry := tool.NewRegistry()
	registry.Register(capture)

	gen := model.NewMockGenerator().AddText("Summarize the calculation", "Расчёт завершён: ROI 50%.")
	orch := orchestrator.NewEngine(gen)

	idx, err := knowledge.NewSQLiteIndex(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	kb := knowledge.NewBase(knowledge.NewHashEmbedder(32), idx)
	require.NoError(t, kb.Initialize(context.Background()))

	conv := conversation.NewManager(st)
	return &fixture{
		manager: NewManager(st, registry, orch, kb, conv, optFns...),
		tool:    capture,
		conv:    conv,
		store:   st,
	}
}

func samplePlanFields() core.PlanFields {
	return testutil.NewPlanFieldsBuilder().
		Description("ROI for the marketing campaign").
		Var("budget", float64(100000)).
		Var("revenue", float64(150000)).
		Code("result = (revenue - budget) / budget").
		Formula("roi = (revenue - budget) / budget").
		Build()
}

func TestCreateAndExecute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg := testutil.NewMessageBuilder().User("рассчитай ROI кампании").Build()
	decision := core.OrchestrationDecision{Mode: core.ModeCalculator}
	plan := f.manager.Create(ctx, "u1", decision, samplePlanFields(), msg, nil)
	require.NotEmpty(t, plan.PlanID)

	resp, err := f.manager.Execute(ctx, plan.PlanID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Расчёт завершён: ROI 50%.", resp.Reply.Content)
	assert.Equal(t, core.ModeCalculator, resp.Decision.Mode)
	require.Len(t, resp.ToolResults, 1)
	assert.True(t, resp.ToolResults[0].Success)

	// the script moves into the request and out of the variable map
	require.NotNil(t, f.tool.last)
	assert.Equal(t, "result = (revenue - budget) / budget", f.tool.last.Code)
	assert.NotContains(t, f.tool.last.Variables, "code")
	assert.Equal(t, float64(150000), f.tool.last.Variables["revenue"])

	// the summary lands in the conversation history
	history := f.conv.Recent(ctx, "u1", 10)
	require.NotEmpty(t, history)
	assert.Equal(t, core.RoleAssistant, history[len(history)-1].Role)
}

func TestExecuteIsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	plan := f.manager.Create(ctx, "u1", core.OrchestrationDecision{Mode: core.ModeCalculator},
		samplePlanFields(), core.NewMessage(core.RoleUser, "ROI"), nil)

	_, err := f.manager.Execute(ctx, plan.PlanID, "u1")
	require.NoError(t, err)

	_, err = f.manager.Execute(ctx, plan.PlanID, "u1")
	assert.ErrorIs(t, err, core.ErrPlanNotFound)
}

func TestExecuteUnknownPlan(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Execute(context.Background(), "no-such-plan", "u1")
	assert.ErrorIs(t, err, core.ErrPlanNotFound)
}

func TestExecuteOwnershipMismatchKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	plan := f.manager.Create(ctx, "owner", core.OrchestrationDecision{Mode: core.ModeCalculator},
		samplePlanFields(), core.NewMessage(core.RoleUser, "ROI"), nil)

	_, err := f.manager.Execute(ctx, plan.PlanID, "intruder")
	require.ErrorIs(t, err, core.ErrPlanForbidden)
	assert.Nil(t, f.tool.last, "rejected execution must not reach the tool")

	// the record survives the rejected attempt
	_, err = f.manager.Execute(ctx, plan.PlanID, "owner")
	assert.NoError(t, err)
}

func TestExecuteUnknownToolKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fields := samplePlanFields()
	fields.SuggestedTool = "nonexistent_tool"
	plan := f.manager.Create(ctx, "u1", core.OrchestrationDecision{Mode: core.ModeCalculator},
		fields, core.NewMessage(core.RoleUser, "ROI"), nil)

	_, err := f.manager.Execute(ctx, plan.PlanID, "u1")
	require.ErrorIs(t, err, core.ErrUnknownTool)
	assert.Nil(t, f.tool.last)

	// the record is still there, only its tool reference is invalid
	_, err = f.manager.Execute(ctx, plan.PlanID, "u1")
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestPlanExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	backend, err := store.NewSQLiteBackend(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	st := store.NewResilient(backend)
	t.Cleanup(func() { st.Close() })

	f := newFixtureWithStore(t, st, func(o *ManagerOptions) { o.TTL = 20 * time.Millisecond })

	plan := f.manager.Create(ctx, "u1", core.OrchestrationDecision{Mode: core.ModeCalculator},
		samplePlanFields(), core.NewMessage(core.RoleUser, "ROI"), nil)

	time.Sleep(40 * time.Millisecond)
	_, err = f.manager.Execute(ctx, plan.PlanID, "u1")
	assert.ErrorIs(t, err, core.ErrPlanNotFound)
}

func TestExecuteKeepsRecordWhenSummaryFails(t *testing.T) {
	ctx := context.Background()
	st := store.NewResilient(nil)
	capture := &captureTool{name: core.DefaultCalculatorTool}
	registry := tool.NewRegistry()
	registry.Register(capture)

	gen := model.NewMockGenerator()
	orch := orchestrator.NewEngine(gen)

	idx, err := knowledge.NewSQLiteIndex(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	kb := knowledge.NewBase(knowledge.NewHashEmbedder(16), idx)
	require.NoError(t, kb.Initialize(ctx))

	m := NewManager(st, registry, orch, kb, conversation.NewManager(st))
	plan := m.Create(ctx, "u1", core.OrchestrationDecision{Mode: core.ModeCalculator},
		samplePlanFields(), core.NewMessage(core.RoleUser, "ROI"), nil)

	gen.FailWith(context.DeadlineExceeded)
	_, err = m.Execute(ctx, plan.PlanID, "u1")
	require.Error(t, err)

	// the record survives a summary failure, so a retry can succeed
	gen.FailWith(nil)
	_, err = m.Execute(ctx, plan.PlanID, "u1")
	assert.NoError(t, err)
}

func TestCreateDefaultsSuggestedTool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fields := samplePlanFields()
	fields.SuggestedTool = ""
	plan := f.manager.Create(ctx, "u1", core.OrchestrationDecision{Mode: core.ModeCalculator},
		fields, core.NewMessage(core.RoleUser, "ROI"), nil)

	assert.Equal(t, core.DefaultCalculatorTool, plan.SuggestedTool)
}
