package runner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/lib/pq"
)

// SQLExecutor runs SQL files against an external postgres database. The
// connection is opened on first use.
type SQLExecutor struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLExecutor(dsn string) *SQLExecutor {
	return &SQLExecutor{dsn: dsn}
}

func (e *SQLExecutor) Run(ctx context.Context, dir, file string) (Result, error) {
	path, err := resolve(dir, file)
	if err != nil {
		return Result{}, err
	}
	query, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read script: %w", err)
	}

	db, err := e.connect(ctx)
	if err != nil {
		return Result{}, err
	}

	res, err := db.ExecContext(ctx, string(query))
	if err != nil {
		return Result{}, fmt.Errorf("failed to execute query: %w", err)
	}
	out := Result{Message: "ok"}
	if n, err := res.RowsAffected(); err == nil {
		rows := int(n)
		out.APICalls = &rows
		out.Message = fmt.Sprintf("%d rows affected", n)
	}
	return out, nil
}

func (e *SQLExecutor) connect(ctx context.Context) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return e.db, nil
	}
	if e.dsn == "" {
		return nil, fmt.Errorf("EXTERNAL_DB_DSN is not configured")
	}

	db, err := sql.Open("postgres", e.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	e.db = db
	return db, nil
}

func (e *SQLExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}
