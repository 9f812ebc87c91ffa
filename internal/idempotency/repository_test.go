package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	// Use in-memory database for tests
	repo, err := NewRepository(DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(""))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testResult() domain.OrderResult {
	return domain.OrderResult{
		OrderID:       42,
		OrderCode:     "ORD-42",
		TotalAmount:   decimal.NewFromInt(485000),
		PaymentMethod: domain.PaymentVNPay,
		PaymentURL:    "https://pay.example/42",
	}
}

func TestAcquire_FirstAttempt(t *testing.T) {
	repo := setupTestDB(t)

	rec, acquired, err := repo.Acquire(context.Background(), "k1", "guest:g1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Nil(t, rec)

	got, err := repo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "guest:g1", got.Owner)
	assert.Nil(t, got.Result)
}

func TestAcquire_PendingDuplicateNotAcquired(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, acquired, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	require.True(t, acquired)

	rec, acquired, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	assert.False(t, acquired)
	require.NotNil(t, rec)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestAcquire_CompletedReplaysResult(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, _, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, "k1", testResult()))

	rec, acquired, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	assert.False(t, acquired)
	require.NotNil(t, rec.Result)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "ORD-42", rec.Result.OrderCode)
	assert.True(t, rec.Result.TotalAmount.Equal(decimal.NewFromInt(485000)))
	assert.Equal(t, domain.PaymentVNPay, rec.Result.PaymentMethod)
	assert.Equal(t, "https://pay.example/42", rec.Result.PaymentURL)
}

func TestAcquire_FailedCanRetry(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, _, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, "k1"))

	_, acquired, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestAcquire_StalePendingCanBeReclaimed(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	_, _, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)

	now = now.Add(3 * time.Minute)
	_, acquired, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestAcquire_OtherOwnerRejected(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, _, err := repo.Acquire(ctx, "k1", "user:1")
	require.NoError(t, err)

	_, _, err = repo.Acquire(ctx, "k1", "user:2")
	assert.ErrorIs(t, err, ErrOwnerMismatch)
}

func TestGet_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	rec, err := repo.Get(context.Background(), "nonexistent-key")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Nil(t, rec)

	assert.ErrorIs(t, repo.Complete(context.Background(), "nonexistent-key", testResult()), ErrKeyNotFound)
}

func TestRunMigrations_FromDirectory(t *testing.T) {
	repo, err := NewRepository(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.RunMigrations("./migrations"))
	// rerunning is a no-op
	require.NoError(t, repo.RunMigrations("./migrations"))
}

func TestNewRepository_UnsupportedDriver(t *testing.T) {
	_, err := NewRepository("mysql", "dsn")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestClaimEvent_OnlyFirstWins(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	claimed, err := repo.ClaimEvent(ctx, "payment:1:PAID")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimEvent(ctx, "payment:1:PAID")
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = repo.ClaimEvent(ctx, "payment:2:PAID")
	require.NoError(t, err)
	assert.True(t, claimed)
}
