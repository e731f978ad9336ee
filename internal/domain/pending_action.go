package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionKind selects the remote operation a pending action is delivered with
type ActionKind string

const (
	ActionUploadSale   ActionKind = "uploadSale"
	ActionSyncCustomer ActionKind = "syncCustomer"
	ActionSyncProduct  ActionKind = "syncProduct"
	ActionUploadReport ActionKind = "uploadReport"
)

// ActionKinds lists every kind in a stable order
var ActionKinds = []ActionKind{ActionUploadSale, ActionSyncCustomer, ActionSyncProduct, ActionUploadReport}

// PendingAction is deferred work waiting for connectivity
type PendingAction struct {
	ID          string          `json:"id"`
	Kind        ActionKind      `json:"action"`
	Payload     json.RawMessage `json:"data"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	EnqueuedAt  time.Time       `json:"timestamp"`
	LastError   string          `json:"lastError,omitempty"`
}

// NewPendingAction creates an action with zero attempts
func NewPendingAction(kind ActionKind, payload json.RawMessage, maxAttempts int) PendingAction {
	return PendingAction{
		ID:          uuid.New().String(),
		Kind:        kind,
		Payload:     payload,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// Exhausted reports whether the action has used all of its attempts
func (a *PendingAction) Exhausted() bool {
	return a.Attempts >= a.MaxAttempts
}
