package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

type Postgres struct {
	db   *sqlx.DB
	tx   *sqlx.Tx
	psql squirrel.StatementBuilderType
}

func NewDB(dsn string, maxIdle, maxOpen int) (*Postgres, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{db: db, psql: newBuilder()}, nil
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r Postgres) Close() error {
	return r.db.Close()
}

// Up applies the embedded migrations.
func (r Postgres) Up() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(r.db.DB, migrationsDir); err != nil {
		return fmt.Errorf("run migrations (dir: %s): %w", migrationsDir, err)
	}

	return nil
}

func (r *Postgres) Begin() (*Postgres, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &Postgres{
		db:   r.db,
		tx:   tx,
		psql: r.psql,
	}, nil
}

func (r *Postgres) Commit() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to commit")
	}
	return r.tx.Commit()
}

func (r *Postgres) Rollback() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to rollback")
	}
	return r.tx.Rollback()
}

func (r *Postgres) RunInTx(ctx context.Context, fn func(*Postgres) error) error {
	if r.tx != nil {
		return fn(r)
	}

	txRepo, err := r.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = txRepo.Rollback()
			panic(p)
		}
	}()

	if err = fn(txRepo); err != nil {
		_ = txRepo.Rollback()
		return err
	}

	return txRepo.Commit()
}

func (r *Postgres) executor() sqlx.ExtContext {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *Postgres) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.executor().ExecContext(ctx, query, args...)
}

func (r *Postgres) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, r.executor(), dest, query, args...)
}

func (r *Postgres) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.executor(), dest, query, args...)
}
