package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"hbnb/src/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// SQLiteEngine stores each object as a JSON document row keyed by
// (kind, id). New and Delete are staged until Save commits them in one
// transaction.
type SQLiteEngine struct {
	sqlDB *sql.DB
	stage staged
}

// OpenSQLite opens the database at path and applies embedded migrations.
func OpenSQLite(path string) (*SQLiteEngine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrationFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteEngine{sqlDB: sqlDB}, nil
}

func (e *SQLiteEngine) Close() error {
	if e == nil || e.sqlDB == nil {
		return nil
	}
	return e.sqlDB.Close()
}

func (e *SQLiteEngine) Get(ctx context.Context, kind types.Kind, id string) (types.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if obj, ok := e.stage.lookup(kind, id); ok {
		if obj == nil {
			return nil, types.ErrNotFound
		}
		return obj, nil
	}

	var body string
	err := e.sqlDB.QueryRowContext(ctx,
		`SELECT body FROM objects WHERE kind = ? AND id = ?`,
		string(kind), id,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", types.KeyOf(kind, id), err)
	}
	return types.Decode(kind, []byte(body))
}

func (e *SQLiteEngine) All(ctx context.Context, kind types.Kind) ([]types.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := e.sqlDB.QueryContext(ctx,
		`SELECT body FROM objects WHERE kind = ? ORDER BY created_at ASC, id ASC`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []types.Object
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		obj, err := types.Decode(kind, []byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return e.stage.overlay(kind, out), nil
}

func (e *SQLiteEngine) New(ctx context.Context, obj types.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.stage.put(obj)
}

func (e *SQLiteEngine) Delete(ctx context.Context, obj types.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.stage.remove(obj)
	return nil
}

// Save commits every staged write in one transaction. The writes are
// dropped whether or not the commit succeeds.
func (e *SQLiteEngine) Save(ctx context.Context) error {
	changes := e.stage.snapshot()
	if len(changes) == 0 {
		return nil
	}
	defer e.stage.clear(changes)
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := e.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	for _, c := range changes {
		if err := e.apply(ctx, tx, c); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (e *SQLiteEngine) apply(ctx context.Context, tx *sql.Tx, c change) error {
	if c.obj == nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM objects WHERE kind = ? AND id = ?`,
			string(c.kind), c.id,
		); err != nil {
			return fmt.Errorf("delete %s: %w", types.KeyOf(c.kind, c.id), err)
		}
		return nil
	}

	body, err := json.Marshal(c.obj)
	if err != nil {
		return fmt.Errorf("encode %s: %w", types.KeyOf(c.kind, c.id), err)
	}
	base := c.obj.Base()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO objects (kind, id, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		string(c.kind),
		c.id,
		string(body),
		toMicros(base.CreatedAt.Time),
		toMicros(base.UpdatedAt.Time),
	); err != nil {
		return fmt.Errorf("upsert %s: %w", types.KeyOf(c.kind, c.id), err)
	}
	return nil
}

func toMicros(value time.Time) int64 {
	return value.UTC().UnixMicro()
}

// applyMigrations executes the Up section of every embedded .sql file under
// root at most once.
func applyMigrations(sqlDB *sql.DB, migrations fs.FS, root string) error {
	entries, err := fs.ReadDir(migrations, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow(
			fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE name = ?", migrationTable), file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations, root+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := upSection(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func upSection(content string) string {
	_, up, found := strings.Cut(content, "-- +migrate Up")
	if !found {
		return content
	}
	up, _, _ = strings.Cut(up, "-- +migrate Down")
	return up
}

var _ types.Engine = (*SQLiteEngine)(nil)
