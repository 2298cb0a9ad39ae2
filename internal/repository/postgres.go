package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type postgresStore struct {
	db *sql.DB
}

type postgresVersion int64

// NewPostgresStore opens dsn, applies the embedded migrations and returns a Store.
// It implements Counter and Versioned; rows carry a version column bumped on every write.
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &postgresStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (p *postgresStore) Get(ctx context.Context, key string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx, `
		SELECT balance
		FROM balances
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > now())
	`, key).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (p *postgresStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO balances (key, balance, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET balance = EXCLUDED.balance,
		    version = balances.version + 1,
		    expires_at = EXCLUDED.expires_at
	`, key, value, expires)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (p *postgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *postgresStore) Close() error {
	return p.db.Close()
}

func (p *postgresStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO balances (key, balance)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET balance = CASE
		        WHEN balances.expires_at IS NOT NULL AND balances.expires_at <= now() THEN EXCLUDED.balance
		        ELSE balances.balance + EXCLUDED.balance
		    END,
		    expires_at = CASE
		        WHEN balances.expires_at IS NOT NULL AND balances.expires_at <= now() THEN NULL
		        ELSE balances.expires_at
		    END,
		    version = balances.version + 1
		RETURNING balance
	`, key, delta).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("add balance: %w", err)
	}
	return balance, nil
}

func (p *postgresStore) GetWithVersion(ctx context.Context, key string) (int64, Version, error) {
	var balance, version int64
	err := p.db.QueryRowContext(ctx, `
		SELECT balance, version
		FROM balances
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > now())
	`, key).Scan(&balance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("get balance: %w", err)
	}
	return balance, postgresVersion(version), nil
}

func (p *postgresStore) CompareAndSwap(ctx context.Context, key string, value int64, version Version) (bool, error) {
	v, ok := version.(postgresVersion)
	if !ok {
		return false, fmt.Errorf("postgres store: foreign version token %T", version)
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE balances
		SET balance = $2,
		    version = version + 1
		WHERE key = $1
		  AND version = $3
	`, key, value, int64(v))
	if err != nil {
		return false, fmt.Errorf("compare and swap: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}
