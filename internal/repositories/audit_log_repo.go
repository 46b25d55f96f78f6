package repositories

import (
	"context"
	"fmt"

	"github.com/bastionhq/bastion/internal/audit"
	"github.com/bastionhq/bastion/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository handles audit record data access. It is both the
// persistence sink behind audit.StoreReporter and the read side for the
// audit trail endpoints.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

func scanAuditRecordRow(row rowScanner) (*audit.Record, error) {
	var rec audit.Record

	err := row.Scan(
		&rec.ID, &rec.Type, &rec.Outcome, &rec.Actor, &rec.Target,
		&rec.Domain, &rec.Timestamp, &rec.Attributes,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rec, nil
}

func scanAuditRecordRows(rows pgx.Rows) ([]*audit.Record, error) {
	defer rows.Close()

	recs := make([]*audit.Record, 0)

	for rows.Next() {
		rec, err := scanAuditRecordRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit record rows: %w", err)
	}

	return recs, nil
}

// Create persists a new audit record.
func (r *AuditLogRepository) Create(ctx context.Context, rec *audit.Record) error {
	query := `
		INSERT INTO audit_logs (id, event_type, outcome, actor, target, domain, occurred_at, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Type, rec.Outcome, rec.Actor, rec.Target,
		rec.Domain, rec.Timestamp, rec.Attributes,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit record: %w", database.MapPostgresError(err))
	}

	return nil
}

// GetByDomain retrieves audit records for a domain, newest first.
func (r *AuditLogRepository) GetByDomain(ctx context.Context, domain string, limit int, offset int) ([]*audit.Record, error) {
	query := `
		SELECT id, event_type, outcome, actor, target, domain, occurred_at, attributes
		FROM audit_logs
		WHERE domain = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, domain, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", database.MapPostgresError(err))
	}

	return scanAuditRecordRows(rows)
}

// GetByEventType retrieves audit records by event type, newest first.
func (r *AuditLogRepository) GetByEventType(ctx context.Context, eventType string, limit int, offset int) ([]*audit.Record, error) {
	query := `
		SELECT id, event_type, outcome, actor, target, domain, occurred_at, attributes
		FROM audit_logs
		WHERE event_type = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, eventType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", database.MapPostgresError(err))
	}

	return scanAuditRecordRows(rows)
}

// CountByDomain counts audit records for a domain.
func (r *AuditLogRepository) CountByDomain(ctx context.Context, domain string) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_logs WHERE domain = $1`

	var count int64
	err := r.pool.QueryRow(ctx, query, domain).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", database.MapPostgresError(err))
	}

	return count, nil
}

// Cleanup removes audit records older than the specified number of days.
func (r *AuditLogRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	query := `
		DELETE FROM audit_logs
		WHERE occurred_at < CURRENT_TIMESTAMP - INTERVAL '1 day' * $1
	`

	result, err := r.pool.Exec(ctx, query, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit records: %w", database.MapPostgresError(err))
	}

	return result.RowsAffected(), nil
}
