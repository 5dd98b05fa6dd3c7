package models

import (
	"fmt"
	"strings"
)

// The error taxonomy shared by the orchestrator, scheduler, and executor.
// Operations return these rather than panicking; callers branch with
// errors.As.

// ValidationError reports malformed input, such as a blank ticket title.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermissionError reports that an actor lacks authority over an entity.
// The only authority rule is creator-or-assignee.
type PermissionError struct {
	Actor    string
	EntityID string
	Action   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("agent %s may not %s %s: not creator or assignee", e.Actor, e.Action, e.EntityID)
}

// InvalidTransitionError reports a state change not present in the entity's
// transition table. ValidTargets lists the transitions that would have been
// accepted from the current state.
type InvalidTransitionError struct {
	EntityID     string
	From         string
	To           string
	ValidTargets []string
}

func (e *InvalidTransitionError) Error() string {
	if len(e.ValidTargets) == 0 {
		return fmt.Sprintf("%s: cannot transition from %s to %s: %s is terminal", e.EntityID, e.From, e.To, e.From)
	}
	return fmt.Sprintf("%s: cannot transition from %s to %s: valid targets are %s",
		e.EntityID, e.From, e.To, strings.Join(e.ValidTargets, ", "))
}

// NotFoundError reports an unresolved entity identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError wraps a failure from a persistence collaborator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ExternalCallError wraps a reasoning or tool collaborator failure,
// including timeouts.
type ExternalCallError struct {
	Call string
	Err  error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call %s: %v", e.Call, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }
