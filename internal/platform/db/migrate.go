package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/curakidney/api/internal/platform/db/migrations"
)

// Test seams over goose's package-level functions.
var (
	gooseUp      = goose.UpContext
	gooseDown    = goose.DownContext
	gooseStatus  = goose.StatusContext
	gooseVersion = goose.GetDBVersionContext
)

// Migrator applies the embedded goose migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator prepares goose to read the embedded migrations and log through
// logger.
func NewMigrator(db *sql.DB, logger zerolog.Logger) (*Migrator, error) {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: db}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	if err := gooseUp(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := gooseDown(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Status logs every migration with its applied state.
func (m *Migrator) Status(ctx context.Context) error {
	if err := gooseStatus(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := gooseVersion(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Str("component", "goose").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Str("component", "goose").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
