package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config describes where the SQLite file lives.
type Config struct {
	DatabasePath string
	BusyTimeout  time.Duration
}

// DB is a handle on the SQLite file. It holds no connection: every
// operation opens its own and closes it before returning, so no lock
// or transaction outlives a single call.
type DB struct {
	path string
	dsn  string
}

// NewDB prepares the database file and applies migrations.
func NewDB(cfg Config) (*DB, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeout.Milliseconds()))
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")

	db := &DB{
		path: cfg.DatabasePath,
		dsn:  "file:" + cfg.DatabasePath + "?" + params.Encode(),
	}

	if err := db.Init(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// open returns a fresh single-connection pool. Callers must close it.
func (d *DB) open(ctx context.Context) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", d.dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return conn, nil
}

// Init creates the shows and movies tables if they do not exist. Safe to call repeatedly.
func (d *DB) Init(ctx context.Context) error {
	conn, err := d.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, res := range results {
		log.Printf("[database] applied migration %s in %s", res.Source.Path, res.Duration)
	}
	return nil
}

// Ping checks that the file can be opened.
func (d *DB) Ping(ctx context.Context) error {
	conn, err := d.open(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}
