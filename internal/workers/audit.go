package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/campusnotes/notes-admin/internal/models"
	"github.com/campusnotes/notes-admin/internal/tasks"
)

// HandleAuditRecord stores one audit entry
func HandleAuditRecord(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseAuditPayload(t)
	if err != nil {
		// a malformed payload never becomes valid, don't retry it
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	entry := &models.AuditEntry{
		Actor:    payload.Actor,
		Action:   payload.Action,
		Entity:   payload.Entity,
		EntityID: payload.EntityID,
	}
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to store audit entry: %w", err)
	}

	logger.Debug().
		Str("actor", payload.Actor).
		Str("action", payload.Action).
		Str("entity", payload.Entity).
		Str("entity_id", payload.EntityID).
		Msg("Audit entry recorded")
	return nil
}
