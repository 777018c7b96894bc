// Package finpilot provides a high-level façade over the engine and its
// services (store, conversation history, knowledge base, decision engine,
// plan lifecycle, tool sandbox). Most applications interact with this package
// by:
//  1. Creating a Pilot via New() (optionally overriding the default
//     in-memory services)
//  2. Processing messages (ProcessMessage) and confirming plans (ExecutePlan)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing: the mock generator, the hash embedder, an in-memory vector index
// and the memory-only store. Production deployments supply a real generator,
// an embedding provider, and sqlite-backed store and index.
package finpilot

import (
	"context"
	"fmt"
	"time"

	"finpilot/conversation"
	"finpilot/core"
	"finpilot/engine"
	"finpilot/knowledge"
	"finpilot/logging"
	"finpilot/model"
	"finpilot/orchestrator"
	"finpilot/plan"
	"finpilot/store"
	"finpilot/tool"
)

// Options configures a Pilot instance.
type Options struct {
	// Generator drafts verdicts, replies and plans (defaults to the mock).
	Generator model.Generator
	// Embedder vectorizes text for retrieval (defaults to the hash embedder).
	Embedder knowledge.Embedder
	// Index stores and searches vectors (defaults to the in-memory index).
	Index knowledge.Index
	// Backend is the durable key-value store. Nil runs the resilient store
	// in its memory-only mode.
	Backend store.Backend

	// PlanTTL bounds how long a drafted plan stays confirmable.
	PlanTTL time.Duration
	// SandboxTimeout bounds one script execution.
	SandboxTimeout time.Duration
	// SearchK is how many knowledge hits each request retrieves.
	SearchK int
	// HistoryLimit is how many trailing turns feed the prompts.
	HistoryLimit int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Pilot is the high-level façade aggregating the engine and its services.
type Pilot struct {
	engine    *engine.Engine
	store     *store.Resilient
	knowledge *knowledge.Base
	registry  *tool.Registry
}

// New creates a Pilot with optional overrides. Any unset service is
// initialized with a local in-process implementation.
func New(optFns ...func(o *Options)) (*Pilot, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Generator == nil {
		opts.Generator = model.NewMockGenerator()
	}
	if opts.Embedder == nil {
		opts.Embedder = knowledge.NewHashEmbedder(0)
	}
	if opts.Index == nil {
		opts.Index = knowledge.NewMemoryIndex()
	}

	st := store.NewResilient(opts.Backend, func(o *store.ResilientOptions) { o.Logger = opts.Logger })

	kb := knowledge.NewBase(opts.Embedder, opts.Index, func(o *knowledge.BaseOptions) { o.Logger = opts.Logger })
	if err := kb.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize knowledge base: %w", err)
	}

	orch := orchestrator.NewEngine(opts.Generator, func(o *orchestrator.EngineOptions) { o.Logger = opts.Logger })

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
	registry.Register(tool.NewSandbox(func(o *tool.SandboxOptions) {
		o.Timeout = opts.SandboxTimeout
		o.Logger = opts.Logger
	}))

	conv := conversation.NewManager(st, func(o *conversation.ManagerOptions) { o.Logger = opts.Logger })
	plans := plan.NewManager(st, registry, orch, kb, conv, func(o *plan.ManagerOptions) {
		o.TTL = opts.PlanTTL
		o.Logger = opts.Logger
	})

	eng := engine.New(st, conv, kb, orch, plans, func(o *engine.Options) {
		o.SearchK = opts.SearchK
		o.HistoryLimit = opts.HistoryLimit
		o.Logger = opts.Logger
	})

	return &Pilot{engine: eng, store: st, knowledge: kb, registry: registry}, nil
}

// Engine exposes the underlying engine, e.g. for mounting the HTTP API.
func (p *Pilot) Engine() *engine.Engine { return p.engine }

// RegisterTool adds a tool beyond the built-in sandbox.
func (p *Pilot) RegisterTool(t tool.Tool) { p.registry.Register(t) }

// ProcessMessage routes one inbound message through the decision step and
// the selected branch.
func (p *Pilot) ProcessMessage(ctx context.Context, req core.ChatRequest) (core.ChatResponse, error) {
	return p.engine.ProcessMessage(ctx, req)
}

// ExecutePlan confirms and runs a previously drafted plan.
func (p *Pilot) ExecutePlan(ctx context.Context, req core.PlanExecutionRequest) (core.ChatResponse, error) {
	return p.engine.ExecutePlan(ctx, req)
}

// ResetContext drops the user's conversation history.
func (p *Pilot) ResetContext(ctx context.Context, userID string) {
	p.engine.ResetContext(ctx, userID)
}

// Ingest indexes a pre-chunked document into the knowledge base.
func (p *Pilot) Ingest(ctx context.Context, source core.DocumentSource, chunks []string) bool {
	return p.knowledge.Ingest(ctx, source, chunks)
}

// Search queries the knowledge base directly.
func (p *Pilot) Search(ctx context.Context, query string, k int) core.KnowledgeSearchResponse {
	return p.knowledge.Search(ctx, query, k)
}

// Close releases the store backend.
func (p *Pilot) Close() error {
	return p.store.Close()
}
