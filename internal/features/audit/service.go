package audit

import (
	"context"
	"time"

	common_models "coprox/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Retention is how long audit entries survive the prune job.
const Retention = 90 * 24 * time.Hour

type AuditService interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error
	ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error)
	Prune(ctx context.Context) (int64, error)
}

type AuditServiceImpl struct {
	Repo AuditRepository
}

func NewAuditService(repo AuditRepository) AuditService {
	return &AuditServiceImpl{
		Repo: repo,
	}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	actorID := "system"
	if actor, ok := ctx.Value(common_models.ActorKey).(string); ok && actor != "" {
		actorID = actor
	}

	log := common_models.AuditLog{
		ID:        primitive.NewObjectID(),
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   actorID,
		Changes:   changes,
		Timestamp: time.Now().UTC(),
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.Repo.List(ctx, filters, limit, offset)
}

// Prune removes entries older than Retention.
func (s *AuditServiceImpl) Prune(ctx context.Context) (int64, error) {
	return s.Repo.DeleteBefore(ctx, time.Now().UTC().Add(-Retention))
}
