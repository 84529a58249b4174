package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"weekplan/internal/model"
)

const defaultDSN = "daily_planner.db"

// NewDB opens the SQLite file shared by the key/value store and the chat
// registry. The pool holds a single connection; writers wait on a locked file.
func NewDB(dsn string, lg *log.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if lg == nil {
		lg = log.New(os.Stdout, "", log.LstdFlags)
	}

	if path, ok := sqliteFile(dsn); ok {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir %q: %w", dir, err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger: logger.New(lg, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.Record{}, &model.User{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return db, nil
}

// sqliteFile returns the on-disk path of dsn; ok is false for in-memory databases.
func sqliteFile(dsn string) (string, bool) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return "", false
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	return path, path != ""
}

// withPragmas adds a busy timeout and WAL journaling unless dsn sets them.
func withPragmas(dsn string) string {
	var extra []string
	if !strings.Contains(dsn, "_busy_timeout") {
		extra = append(extra, "_busy_timeout=5000")
	}
	if _, ok := sqliteFile(dsn); ok && !strings.Contains(dsn, "_journal_mode") {
		extra = append(extra, "_journal_mode=WAL")
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}
