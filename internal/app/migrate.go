package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialapp/backend/internal/config"
	"github.com/socialapp/backend/internal/db"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

// Serialization failures are retried inside crdbpgxv5.ExecuteTx; these are the
// lock errors worth a fresh attempt after a pause.
var retryablePgErrorCodes = map[string]struct{}{
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

type migration struct {
	Name string
	SQL  string
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q", command)
	}

	migrationDir, err := resolveDir(cfg.MigrationDir)
	if err != nil {
		return err
	}
	migrations, err := loadMigrations(migrationDir)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	if command == "status" {
		for _, m := range migrations {
			if at, ok := applied[m.Name]; ok {
				fmt.Printf("[x] %s (applied %s)\n", m.Name, at.UTC().Format(time.RFC3339))
			} else {
				fmt.Printf("[ ] %s\n", m.Name)
			}
		}
		return nil
	}

	pending := 0
	for _, m := range migrations {
		if _, ok := applied[m.Name]; ok {
			continue
		}
		if err := applyMigrationWithRetry(ctx, conn, m.Name, m.SQL); err != nil {
			return err
		}
		pending++
		fmt.Printf("applied migration %s\n", m.Name)
	}
	if pending == 0 {
		fmt.Println("schema is up to date")
	}
	return nil
}

func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}

// loadMigrations reads every .sql file in dir, ordered by file name.
func loadMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, migration{Name: entry.Name(), SQL: string(contents)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Name < migrations[j].Name })
	return migrations, nil
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]time.Time, error) {
	if _, err := conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version TEXT PRIMARY KEY,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appliedVersion, error) {
		var v appliedVersion
		err := row.Scan(&v.name, &v.at)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]time.Time, len(versions))
	for _, v := range versions {
		applied[v.name] = v.at
	}
	return applied, nil
}

type appliedVersion struct {
	name string
	at   time.Time
}

func applyMigrationWithRetry(ctx context.Context, conn *pgxpool.Conn, name string, contents string) error {
	var err error
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, migrationBackoff(attempt)); err != nil {
				return err
			}
		}

		err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, contents); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name)
			return err
		})
		if err == nil {
			return nil
		}
		if !shouldRetryMigration(err) {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		fmt.Printf("transient error applying migration %s (attempt %d/%d): %v\n", name, attempt+1, migrationMaxRetries, err)
	}

	return fmt.Errorf("apply migration %s: exceeded max retries (%d): %w", name, migrationMaxRetries, err)
}

func migrationBackoff(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
	if backoff > migrationMaxBackoff {
		backoff = migrationMaxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	return errors.Is(err, pgx.ErrTxClosed)
}
