package core

import "errors"

// Sentinel errors for the user-visible validation conditions. They map to
// explicit rejection messages at the boundary; everything else degrades
// instead of failing the request.
var (
	// ErrPlanNotFound is returned when a plan id does not resolve to a
	// persisted record, either because it never existed, its TTL elapsed,
	// or it was already executed.
	ErrPlanNotFound = errors.New("plan expired or not found")

	// ErrPlanForbidden is returned when the claimed user is not the owner
	// of the plan. The record is left intact so the rightful owner can
	// still execute it.
	ErrPlanForbidden = errors.New("plan ownership mismatch")

	// ErrUnknownTool is carried in tool results for unrecognized tool
	// names. Unknown tools are a data-validation condition, not a fault.
	ErrUnknownTool = errors.New("unknown tool")
)
