// Package core provides the foundational domain types shared by every FinPilot
// subsystem. It defines the core abstractions for:
//
//   - Messages (immutable conversation records with roles and metadata)
//   - Orchestration decisions (the advisor/calculator routing verdict)
//   - Calculator plans (user-confirmable calculation descriptions)
//   - Tool execution requests and results
//   - Knowledge search hits and degradation-aware responses
//   - Boundary payloads exchanged with the transport layer
//
// The package intentionally keeps implementation concerns (persistence,
// generation providers, the sandbox) out of scope so that higher layers can
// depend on small value types without import cycles.
package core
