package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bastionhq/bastion/internal/audit"
	"github.com/bastionhq/bastion/internal/database"
	"github.com/bastionhq/bastion/internal/models"
)

const testSchema = `
CREATE TABLE login_attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    domain VARCHAR(255) NOT NULL,
    client VARCHAR(255) NOT NULL,
    identity_provider VARCHAR(255) NOT NULL,
    username VARCHAR(255) NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    expire_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (domain, client, identity_provider, username)
);

CREATE TABLE audit_logs (
    id UUID PRIMARY KEY,
    event_type VARCHAR(100) NOT NULL,
    outcome VARCHAR(20) NOT NULL,
    actor VARCHAR(255) NOT NULL DEFAULT '',
    target VARCHAR(255) NOT NULL DEFAULT '',
    domain VARCHAR(255) NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL,
    attributes JSONB
);

CREATE INDEX idx_audit_logs_domain ON audit_logs (domain, occurred_at DESC);
`

// setupTestDB starts a throwaway postgres container and applies the schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("bastion"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return &database.DB{Pool: pool}
}

func attemptFixture(suffix string) *models.LoginAttempt {
	return &models.LoginAttempt{
		Domain:           "acme",
		Client:           "web-portal",
		IdentityProvider: "internal",
		Username:         "user_" + suffix,
		Attempts:         1,
	}
}

func TestLoginAttemptRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoginAttemptRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, attemptFixture("alpha"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Attempts)
	assert.Nil(t, created.ExpireAt)

	found, err := repo.FindByCriteria(ctx, models.LoginAttemptCriteria{
		Domain:           "acme",
		Client:           "web-portal",
		IdentityProvider: "internal",
		Username:         "user_alpha",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	expireAt := time.Now().Add(2 * time.Hour).UTC()
	found.Attempts = 10
	found.ExpireAt = &expireAt

	updated, err := repo.Update(ctx, found)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Attempts)
	require.NotNil(t, updated.ExpireAt)
	assert.WithinDuration(t, expireAt, *updated.ExpireAt, time.Second)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Attempts)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.FindByCriteria(ctx, models.LoginAttemptCriteria{
		Domain:           "acme",
		Client:           "web-portal",
		IdentityProvider: "internal",
		Username:         "user_alpha",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoginAttemptRepository_DeleteAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoginAttemptRepository(db)

	err := repo.Delete(context.Background(), "4fd1c6a1-97cf-4f0a-93fb-9f1d0e5a1200")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoginAttemptRepository_DeleteByDomain(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoginAttemptRepository(db)
	ctx := context.Background()

	for _, suffix := range []string{"one", "two"} {
		_, err := repo.Create(ctx, attemptFixture(suffix))
		require.NoError(t, err)
	}
	other := attemptFixture("three")
	other.Domain = "globex"
	kept, err := repo.Create(ctx, other)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByDomain(ctx, "acme"))

	_, err = repo.GetByID(ctx, kept.ID)
	assert.NoError(t, err, "other domains unaffected")

	_, err = repo.FindByCriteria(ctx, models.LoginAttemptCriteria{
		Domain:           "acme",
		Client:           "web-portal",
		IdentityProvider: "internal",
		Username:         "user_one",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoginAttemptRepository_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoginAttemptRepository(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	expired := attemptFixture("expired")
	expired.ExpireAt = &past
	_, err := repo.Create(ctx, expired)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	active := attemptFixture("active")
	active.ExpireAt = &future
	_, err = repo.Create(ctx, active)
	require.NoError(t, err)

	unlocked := attemptFixture("unlocked")
	_, err = repo.Create(ctx, unlocked)
	require.NoError(t, err)

	purged, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged, "only past-expiry records purged")
}

func TestAuditLogRepository_CreateAndQuery(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := audit.NewRecord(audit.UserAction{
			Type:     audit.EventTypeAccountLocked,
			Domain:   "acme",
			ActorID:  fmt.Sprintf("user_%d", i),
			TargetID: fmt.Sprintf("user_%d", i),
			Outcome:  audit.OutcomeFailure,
			Reason:   "maximum login attempts exceeded",
		})
		require.NoError(t, repo.Create(ctx, &rec))
	}

	otherRec := audit.NewRecord(audit.UserAction{
		Type:    audit.EventTypeUserLogin,
		Domain:  "globex",
		Outcome: audit.OutcomeSuccess,
	})
	require.NoError(t, repo.Create(ctx, &otherRec))

	records, err := repo.GetByDomain(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, audit.EventTypeAccountLocked, records[0].Type)
	assert.Equal(t, "maximum login attempts exceeded", records[0].Attributes["reason"])

	count, err := repo.CountByDomain(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	byType, err := repo.GetByEventType(ctx, audit.EventTypeUserLogin, 10, 0)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "globex", byType[0].Domain)
}

func TestAuditLogRepository_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := audit.NewRecord(audit.SystemTaskAction{
			Task:    "login_attempt_cleanup",
			Domain:  "acme",
			Outcome: audit.OutcomeSuccess,
		})
		rec.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, &rec))
	}

	page, err := repo.GetByDomain(ctx, "acme", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Timestamp.After(page[1].Timestamp), "newest first")
}
