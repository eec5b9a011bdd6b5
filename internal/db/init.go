package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var sqlFiles embed.FS

var (
	db       *sql.DB
	dbErr    error
	dbCreate sync.Once
)

// GetDB opens the database at filePath once, creating it if needed. Later calls ignore filePath.
func GetDB(filePath string) *sql.DB {
	dbCreate.Do(func() {
		db, dbErr = Open(filePath)
		if dbErr != nil {
			logrus.Fatalf("error getting db: %v", dbErr)
		}
	})
	return db
}

// Open opens the sqlite database at filePath, creating the file and tables if needed.
func Open(filePath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("error creating db directory: %w", err)
	}

	// foreign keys are per-connection in sqlite, so set them in the DSN
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", filePath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}

	schema, _ := sqlFiles.ReadFile("schema.sql")
	if _, err = db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	logrus.WithField("path", filePath).Debug("database ready")
	return db, nil
}
