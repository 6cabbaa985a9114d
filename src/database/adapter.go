package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// DBAdapter provides a unified interface over the catalog databases.
// Statements use $1..$n placeholders, which both drivers accept
type DBAdapter interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
	Query(ctx context.Context, sql string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) Row
	Close()
}

// Rows is the result set of Query
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close()
	Err() error
}

// Row is the result of QueryRow
type Row interface {
	Scan(dest ...interface{}) error
}

// PostgreSQLAdapter wraps pgxpool.Pool
type PostgreSQLAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLAdapter creates a new PostgreSQL adapter
func NewPostgreSQLAdapter(pool *pgxpool.Pool) *PostgreSQLAdapter {
	return &PostgreSQLAdapter{pool: pool}
}

func (p *PostgreSQLAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *PostgreSQLAdapter) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows}, nil
}

func (p *PostgreSQLAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *PostgreSQLAdapter) Close() {
	p.pool.Close()
}

// pgxRows hides pgx.Rows methods the adapter does not expose
type pgxRows struct {
	rows pgx.Rows
}

func (r pgxRows) Next() bool                     { return r.rows.Next() }
func (r pgxRows) Scan(dest ...interface{}) error { return r.rows.Scan(dest...) }
func (r pgxRows) Close()                         { r.rows.Close() }
func (r pgxRows) Err() error                     { return r.rows.Err() }

// SQLiteAdapter wraps SQLiteDB
type SQLiteAdapter struct {
	db *SQLiteDB
}

// NewSQLiteAdapter creates a new SQLite adapter
func NewSQLiteAdapter(db *SQLiteDB) *SQLiteAdapter {
	return &SQLiteAdapter{db: db}
}

func (s *SQLiteAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	result, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteAdapter) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (s *SQLiteAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) Row {
	return s.db.QueryRow(ctx, sql, args...)
}

func (s *SQLiteAdapter) Close() {
	s.db.Close()
}

// sqlRows adapts *sql.Rows, whose Close returns an error
type sqlRows struct {
	rows *sql.Rows
}

func (r sqlRows) Next() bool                     { return r.rows.Next() }
func (r sqlRows) Scan(dest ...interface{}) error { return r.rows.Scan(dest...) }
func (r sqlRows) Close()                         { _ = r.rows.Close() }
func (r sqlRows) Err() error                     { return r.rows.Err() }

// Placeholders returns n comma separated placeholders starting at $first
func Placeholders(first, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", first+i)
	}
	return strings.Join(parts, ", ")
}

// CreateDatabaseAdapter connects to the database behind dbURL ("sqlite:<path>"
// or "postgres://...") and makes sure the catalog schema exists
func CreateDatabaseAdapter(ctx context.Context, dbURL string) (DBAdapter, error) {
	dbType, connStr, err := ParseDatabaseURL(dbURL)
	if err != nil {
		return nil, err
	}

	switch dbType {
	case "sqlite":
		db, err := NewSQLiteDB(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite connection: %w", err)
		}
		return NewSQLiteAdapter(db), nil

	case "postgres":
		config, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
		}

		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
		}

		if _, err := pool.Exec(ctx, postgresSchema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize PostgreSQL schema: %w", err)
		}
		logrus.Debug("PostgreSQL schema initialized")

		return NewPostgreSQLAdapter(pool), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
