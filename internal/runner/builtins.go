package runner

import (
	"context"
	"fmt"

	"coprox/internal/features/audit"
)

const AuditPruneBuiltin = "maintenance:audit-prune"

// RegisterMaintenance adds the builtins that clean up after the service
// itself.
func RegisterMaintenance(r *ScriptRunner, auditService audit.AuditService) {
	r.Register(AuditPruneBuiltin, func(ctx context.Context, task Task) (Result, error) {
		n, err := auditService.Prune(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("prune audit logs: %w", err)
		}
		calls := int(n)
		return Result{APICalls: &calls, Message: fmt.Sprintf("removed %d audit entries", n)}, nil
	})
}
