package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// NewPostgres создаёт подключение к PostgreSQL с заданным DSN.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось подключиться: %w", err)
	}

	// Пул соединений: транзакции с FOR UPDATE короткие, поэтому
	// большого числа открытых соединений не требуется.
	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(time.Minute)

	return conn, nil
}

// RunMigrations применяет SQL файлы из каталога миграций по алфавитному
// порядку имён. Уже применённые файлы учитываются в schema_migrations и
// пропускаются, каждый новый выполняется в собственной транзакции.
func RunMigrations(ctx context.Context, conn *sqlx.DB, log *logrus.Logger, migrationsDir string) error {
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("postgres: таблица миграций %w", err)
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("postgres: каталог миграций %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := applyMigration(ctx, conn, migrationsDir, name); err != nil {
			return err
		}
		log.WithField("migration", name).Info("миграция применена")
	}
	return nil
}

func appliedMigrations(ctx context.Context, conn *sqlx.DB) (map[string]bool, error) {
	var names []string
	if err := conn.SelectContext(ctx, &names, `SELECT name FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("postgres: чтение schema_migrations %w", err)
	}
	applied := make(map[string]bool, len(names))
	for _, name := range names {
		applied[name] = true
	}
	return applied, nil
}

func applyMigration(ctx context.Context, conn *sqlx.DB, dir, name string) error {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("postgres: чтение миграции %s %w", name, err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: начало транзакции миграции %s %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(raw)); err != nil {
		return fmt.Errorf("postgres: выполнение миграции %s %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("postgres: фиксация миграции %s %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: коммит миграции %s %w", name, err)
	}
	return nil
}
