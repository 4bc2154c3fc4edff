package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pointflow/pkg/logger"
)

type MigrationFunc func(ctx context.Context, tx *sql.Tx, dialect Dialect) error

type MigrationService struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

func NewMigrationService(db *sql.DB, dialect Dialect, log logger.Logger) *MigrationService {
	return &MigrationService{
		db:      db,
		dialect: dialect,
		logger:  log,
	}
}

func (m *MigrationService) InitMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS migrations (
        id %s,
        name TEXT NOT NULL UNIQUE,
        applied_at BIGINT NOT NULL
    )
    `, m.dialect.IdentityType)

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		m.logger.Error("Failed to create migrations table", map[string]interface{}{"error": err.Error()})
		return err
	}

	return nil
}

func (m *MigrationService) IsMigrationApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE name = $1", name).Scan(&count)
	if err != nil {
		m.logger.Error("Failed to check migration state", map[string]interface{}{"name": name, "error": err.Error()})
		return false, err
	}

	return count > 0, nil
}

func (m *MigrationService) ApplyMigration(ctx context.Context, name string, migrate MigrationFunc) (err error) {
	applied, err := m.IsMigrationApplied(ctx, name)
	if err != nil {
		return err
	}

	if applied {
		m.logger.Debug("Migration already applied", map[string]interface{}{"name": name})
		return nil
	}

	m.logger.Info("Applying migration", map[string]interface{}{"name": name})

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			m.logger.Error("Migration rolled back", map[string]interface{}{"name": name, "error": err.Error()})
		}
	}()

	if err = migrate(ctx, tx, m.dialect); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "INSERT INTO migrations (name, applied_at) VALUES ($1, $2)", name, time.Now().UnixMilli()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	m.logger.Info("Migration applied", map[string]interface{}{"name": name})
	return nil
}

func (m *MigrationService) RunMigrations(ctx context.Context) error {
	if err := m.InitMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := []struct {
		Name string
		Func MigrationFunc
	}{
		{"create_user_points_table", CreateUserPointsTable},
		{"create_point_histories_table", CreatePointHistoriesTable},
	}

	for _, migration := range migrations {
		if err := m.ApplyMigration(ctx, migration.Name, migration.Func); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	return nil
}

func CreateUserPointsTable(ctx context.Context, tx *sql.Tx, _ Dialect) error {
	query := `
    CREATE TABLE IF NOT EXISTS user_points (
        user_id BIGINT PRIMARY KEY,
        point BIGINT NOT NULL DEFAULT 0 CHECK (point >= 0 AND point <= 100000),
        update_millis BIGINT NOT NULL
    )
    `

	_, err := tx.ExecContext(ctx, query)
	return err
}

func CreatePointHistoriesTable(ctx context.Context, tx *sql.Tx, dialect Dialect) error {
	statements := []string{
		fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS point_histories (
        id %s,
        user_id BIGINT NOT NULL,
        amount BIGINT NOT NULL CHECK (amount > 0),
        type TEXT NOT NULL,
        update_millis BIGINT NOT NULL
    )
    `, dialect.IdentityType),
		`CREATE INDEX IF NOT EXISTS point_histories_user_id_idx ON point_histories (user_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
