package repositories

import (
	"context"
	"fmt"

	"github.com/bastionhq/bastion/internal/database"
	"github.com/bastionhq/bastion/internal/models"
)

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

func scanLoginAttemptRow(row rowScanner) (*models.LoginAttempt, error) {
	var attempt models.LoginAttempt

	err := row.Scan(
		&attempt.ID, &attempt.Domain, &attempt.Client, &attempt.IdentityProvider,
		&attempt.Username, &attempt.Attempts, &attempt.ExpireAt,
		&attempt.CreatedAt, &attempt.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &attempt, nil
}

// FindByCriteria returns the record matching the exact key tuple, or
// models.ErrNotFound when no record exists.
func (r *LoginAttemptRepository) FindByCriteria(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	query := `
		SELECT id, domain, client, identity_provider, username, attempts, expire_at, created_at, updated_at
		FROM login_attempts
		WHERE domain = $1 AND client = $2 AND identity_provider = $3 AND username = $4
	`

	attempt, err := scanLoginAttemptRow(r.db.Pool.QueryRow(ctx, query,
		criteria.Domain, criteria.Client, criteria.IdentityProvider, criteria.Username,
	))
	if err != nil {
		return nil, err
	}

	return attempt, nil
}

// GetByID returns the record by its id, or models.ErrNotFound.
func (r *LoginAttemptRepository) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	query := `
		SELECT id, domain, client, identity_provider, username, attempts, expire_at, created_at, updated_at
		FROM login_attempts
		WHERE id = $1
	`

	attempt, err := scanLoginAttemptRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	return attempt, nil
}

// Create inserts a new login attempt record and returns the persisted row.
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	query := `
		INSERT INTO login_attempts (domain, client, identity_provider, username, attempts, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, domain, client, identity_provider, username, attempts, expire_at, created_at, updated_at
	`

	created, err := scanLoginAttemptRow(r.db.Pool.QueryRow(ctx, query,
		attempt.Domain, attempt.Client, attempt.IdentityProvider, attempt.Username,
		attempt.Attempts, attempt.ExpireAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create login attempt: %w", err)
	}

	return created, nil
}

// Update persists the attempt counter and expiry and returns the updated row.
func (r *LoginAttemptRepository) Update(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	query := `
		UPDATE login_attempts
		SET attempts = $2, expire_at = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING id, domain, client, identity_provider, username, attempts, expire_at, created_at, updated_at
	`

	updated, err := scanLoginAttemptRow(r.db.Pool.QueryRow(ctx, query,
		attempt.ID, attempt.Attempts, attempt.ExpireAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update login attempt: %w", err)
	}

	return updated, nil
}

// Delete removes the record by id. Deleting an absent id reports
// models.ErrNotFound; callers that treat absence as a no-op check for it.
func (r *LoginAttemptRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM login_attempts WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteByDomain removes every record for a domain. No-op when the domain
// has none.
func (r *LoginAttemptRepository) DeleteByDomain(ctx context.Context, domain string) error {
	query := `DELETE FROM login_attempts WHERE domain = $1`

	_, err := r.db.Pool.Exec(ctx, query, domain)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteExpired removes records whose lockout window has passed.
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expire_at IS NOT NULL AND expire_at <= CURRENT_TIMESTAMP`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
