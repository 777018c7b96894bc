// Package model and its subpackages adapt concrete LLM providers to the
// Generator interface consumed by the orchestration layer. The adapters are
// intentionally non-streaming: every orchestration step needs the complete
// completion before acting on it.
package model
