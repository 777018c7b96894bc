// Package testutil provides fluent builders for constructing domain values
// in tests. Chain only the parts a test needs; sensible defaults are applied.
package testutil
