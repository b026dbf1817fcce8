package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const AuditActionIntegrityFix = "integrity.fix"

type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	Actor      *string   `db:"actor_user_id" json:"-"`
	ActorName  string    `db:"-" json:"actor"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID, data string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), actorID, action, entityType, entityID, data)
	return err
}

// ListByAction returns the newest entries for one action, most recent first.
func (s *AuditStore) ListByAction(ctx context.Context, action string, limit int) ([]AuditEntry, error) {
	var rows []AuditEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		WHERE action = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, action, limit)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].ActorName = derefStringPtr(rows[i].Actor)
	}
	return rows, nil
}
