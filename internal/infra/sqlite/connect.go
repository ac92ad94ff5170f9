package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/vogiaan1904/vcping/config"
	_ "modernc.org/sqlite"
)

// Connect opens the database at cfg.Path and brings its schema up to date
// with migrationFS.
func Connect(ctx context.Context, cfg config.SQLiteConfig, migrationFS fs.FS) (*sql.DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	if err := ApplyMigrations(ctx, db, migrationFS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite: %w", err)
	}

	log.Printf("Connected to SQLite at %s.", path)

	return db, nil
}

func Disconnect(db *sql.DB) {
	if db == nil {
		return
	}

	db.Close()

	log.Println("Connection to SQLite closed.")
}
