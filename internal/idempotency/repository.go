// Package idempotency records order submissions by idempotency key so a
// repeated submission replays the first result instead of creating a second
// order.
package idempotency

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrKeyNotFound       = errors.New("idempotency key not found")
	ErrOwnerMismatch     = errors.New("idempotency key belongs to another owner")
	ErrUnsupportedDriver = errors.New("unsupported idempotency driver")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

// Record is one order submission attempt.
type Record struct {
	Key       string
	Owner     string
	Status    Status
	Result    *domain.OrderResult
	UpdatedAt time.Time
}

type Repository struct {
	db     *sql.DB
	driver string
	// staleAfter releases a pending key whose holder never finished.
	staleAfter time.Duration
	now        func() time.Time
}

func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// one connection keeps ":memory:" databases shared and serializes writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}
	return &Repository{db: db, driver: driver, staleAfter: 2 * time.Minute, now: time.Now}, nil
}

// RunMigrations applies the schema from migrationsPath, or from the embedded
// migrations when the path is empty.
func (r *Repository) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	var m *migrate.Migrate
	if migrationsPath == "" {
		src, errSrc := iofs.New(migrationsFS, "migrations")
		if errSrc != nil {
			return fmt.Errorf("could not open embedded migrations: %w", errSrc)
		}
		m, err = migrate.NewWithInstance("iofs", src, r.driver, driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsPath), r.driver, driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// Acquire claims key for owner. It reports acquired when the caller may submit
// the order; otherwise the existing record is returned: a completed one to be
// replayed, or a pending one still held by another attempt.
func (r *Repository) Acquire(ctx context.Context, key, owner string) (rec *Record, acquired bool, err error) {
	now := r.now().Unix()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO order_submissions (idempotency_key, owner, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, owner, StatusPending, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil, true, nil
	}

	existing, err := r.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing.Owner != owner {
		return nil, false, ErrOwnerMismatch
	}

	retryable := existing.Status == StatusFailed ||
		(existing.Status == StatusPending && r.now().Sub(existing.UpdatedAt) > r.staleAfter)
	if !retryable {
		return existing, false, nil
	}

	res, err = r.db.ExecContext(ctx, `
		UPDATE order_submissions SET status = $1, updated_at = $2
		WHERE idempotency_key = $3 AND status = $4 AND updated_at = $5
	`, StatusPending, now, key, existing.Status, existing.UpdatedAt.Unix())
	if err != nil {
		return nil, false, fmt.Errorf("failed to reclaim submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil, true, nil
	}
	// another attempt reclaimed it first
	existing, err = r.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *Repository) Complete(ctx context.Context, key string, result domain.OrderResult) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE order_submissions
		SET status = $1, order_id = $2, order_code = $3, total_amount = $4,
		    payment_method = $5, payment_url = $6, updated_at = $7
		WHERE idempotency_key = $8
	`, StatusCompleted, result.OrderID, result.OrderCode, result.TotalAmount.String(),
		string(result.PaymentMethod), result.PaymentURL, r.now().Unix(), key)
	if err != nil {
		return fmt.Errorf("failed to complete submission: %w", err)
	}
	return requireRow(res)
}

// Fail releases key so the same submission can be retried.
func (r *Repository) Fail(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE order_submissions SET status = $1, updated_at = $2
		WHERE idempotency_key = $3 AND status = $4
	`, StatusFailed, r.now().Unix(), key, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark submission failed: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) Get(ctx context.Context, key string) (*Record, error) {
	var (
		rec                                         Record
		orderID                                     sql.NullInt64
		orderCode, total, paymentMethod, paymentURL sql.NullString
		updatedAt                                   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT idempotency_key, owner, status, order_id, order_code, total_amount,
		       payment_method, payment_url, updated_at
		FROM order_submissions
		WHERE idempotency_key = $1
	`, key).Scan(&rec.Key, &rec.Owner, &rec.Status, &orderID, &orderCode, &total, &paymentMethod, &paymentURL, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	if rec.Status == StatusCompleted {
		amount, errAmount := decimal.NewFromString(total.String)
		if errAmount != nil {
			return nil, fmt.Errorf("failed to parse total amount: %w", errAmount)
		}
		rec.Result = &domain.OrderResult{
			OrderID:       orderID.Int64,
			OrderCode:     orderCode.String,
			TotalAmount:   amount,
			PaymentMethod: domain.PaymentMethod(paymentMethod.String),
			PaymentURL:    paymentURL.String,
		}
	}
	return &rec, nil
}

// ClaimEvent records that the event named key is about to be published. Only
// the first claim of a key, across all instances sharing the database, wins.
func (r *Repository) ClaimEvent(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO published_events (event_key, created_at)
		VALUES ($1, $2)
		ON CONFLICT (event_key) DO NOTHING
	`, key, r.now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}
