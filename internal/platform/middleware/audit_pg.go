package middleware

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAuditRecorder persists audit entries to the audit_log table.
type PGAuditRecorder struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPGAuditRecorder(pool *pgxpool.Pool) *PGAuditRecorder {
	return &PGAuditRecorder{pool: pool, timeout: 5 * time.Second}
}

func (r *PGAuditRecorder) RecordAccess(entry AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, user_roles, resource, resource_id, action,
			method, path, ip_address, user_agent, request_id, status_code, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		entry.UserID, entry.UserRoles, entry.Resource, entry.ResourceID, entry.Action,
		entry.Method, entry.Path, entry.IPAddress, entry.UserAgent, entry.RequestID,
		entry.StatusCode, entry.Timestamp)
	return err
}
