package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeAuditRecord = "audit:record"
)

// Audit actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// AuditPayload describes one admin action
type AuditPayload struct {
	Actor    string `json:"actor"`
	Action   string `json:"action"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id,omitempty"`
}

// NewAuditTask creates a task recording an admin action
func NewAuditTask(p AuditPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeAuditRecord, payload, asynq.Queue("low"), asynq.MaxRetry(5)), nil
}

// ParseAuditPayload parses an audit payload from an Asynq task
func ParseAuditPayload(task *asynq.Task) (AuditPayload, error) {
	var payload AuditPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

// Enqueuer is the part of *asynq.Client used to submit tasks
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
