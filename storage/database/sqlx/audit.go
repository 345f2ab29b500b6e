package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

func (repo *repository) CreateAuditLog(ctx context.Context, log user.AuditLog) (user.AuditLog, error) {
	err := repo.exec.QueryRowxContext(ctx, repo.exec.Rebind(`
		INSERT INTO audit_logs (entity_type, entity_id, action, actor_id, old_data, new_data, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		log.EntityType, log.EntityID, log.Action, log.ActorID, log.OldData, log.NewData, log.Metadata, log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return user.AuditLog{}, errors.Wrap(err, "inserting audit log")
	}
	return log, nil
}

// QueryAuditLogs returns the logs of entityID, newest first. An empty entityType matches all types.
func (repo *repository) QueryAuditLogs(ctx context.Context, entityType, entityID string) ([]user.AuditLog, error) {
	q := "SELECT * FROM audit_logs WHERE entity_id = ?"
	args := []interface{}{entityID}
	if entityType != "" {
		q += " AND entity_type = ?"
		args = append(args, entityType)
	}
	q += " ORDER BY created_at DESC, id DESC"

	logs := make([]user.AuditLog, 0)
	if err := repo.selectAll(ctx, &logs, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit logs")
	}
	return logs, nil
}
