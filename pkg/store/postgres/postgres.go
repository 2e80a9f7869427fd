// Package postgres implements the pending store on PostgreSQL.
//
// Each record is one row in pending_transactions, keyed by transaction ID.
// Append relies on the database for durability and on ON CONFLICT for set
// semantics; Drain removes and returns rows in a single statement so the
// read-and-clear cannot race a concurrent append.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidhantk/txnrelay/pkg/api"
)

//go:embed 001_create_pending_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL store configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Store is a PostgreSQL-backed pending store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL and ensures the pending_transactions table
// exists. The initial ping is retried a few times so the daemon survives a
// database that is still starting; store operations themselves are never
// retried.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		},
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	s := &Store{pool: pool, logger: logger}

	if _, err := pool.Exec(context.Background(), migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migration: %w", err)
	}

	return s, nil
}

// Append inserts one record. An existing ID leaves the stored row untouched
// and is reported as not inserted.
func (s *Store) Append(ctx context.Context, txn api.Transaction) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pending_transactions (id, amount, merchant, ts, tag)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, txn.ID, txn.Amount, txn.Merchant, txn.Timestamp, txn.Tag)
	if err != nil {
		return false, api.StorageError("appending transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.logger.Debug("appended transaction", "id", txn.ID)
	return true, nil
}

// Pending returns every stored record. Order is unspecified.
func (s *Store) Pending(ctx context.Context) ([]api.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, amount, merchant, ts, tag FROM pending_transactions`)
	if err != nil {
		return nil, api.StorageError("reading pending transactions", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_transactions`)
	if err != nil {
		return api.StorageError("clearing pending transactions", err)
	}

	s.logger.Info("cleared pending transactions", "count", tag.RowsAffected())
	return nil
}

// Drain removes and returns every record. The delete runs inside an explicit
// transaction that only commits once every row has been scanned, so a scan
// failure rolls the delete back instead of discarding rows it never returned.
func (s *Store) Drain(ctx context.Context) ([]api.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, api.StorageError("draining pending transactions", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`DELETE FROM pending_transactions RETURNING id, amount, merchant, ts, tag`)
	if err != nil {
		return nil, api.StorageError("draining pending transactions", err)
	}

	drained, err := scanTransactions(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, api.StorageError("committing drain", err)
	}

	s.logger.Info("drained pending transactions", "count", len(drained))
	return drained, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTransactions(rows rowScanner) ([]api.Transaction, error) {
	txns := make([]api.Transaction, 0)
	for rows.Next() {
		var txn api.Transaction
		if err := rows.Scan(&txn.ID, &txn.Amount, &txn.Merchant, &txn.Timestamp, &txn.Tag); err != nil {
			return nil, api.StorageError("scanning transaction row", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, api.StorageError("iterating transaction rows", err)
	}
	return txns, nil
}

var _ api.PendingStore = (*Store)(nil)
