package oplog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const recordColumns = `id, type, source, destination, rule_name, confidence, created_at, undone_at, batch_id, compressed`

// SQLiteStore keeps records in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// OpenSQLite opens path (or ":memory:") and migrates it to the latest schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating oplog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening oplog: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, logger: logging.Get("oplog")}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	// m is not closed: closing it would close db, which the store owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating oplog: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec         Record
		typ         string
		destination sql.NullString
		ruleName    sql.NullString
		confidence  sql.NullFloat64
		createdAt   int64
		undoneAt    sql.NullInt64
		batchID     sql.NullString
		compressed  bool
	)
	if err := row.Scan(&rec.ID, &typ, &rec.Source, &destination, &ruleName, &confidence,
		&createdAt, &undoneAt, &batchID, &compressed); err != nil {
		return nil, err
	}
	rec.Type = OpType(typ)
	rec.Destination = destination.String
	rec.RuleName = ruleName.String
	if confidence.Valid {
		c := confidence.Float64
		rec.Confidence = &c
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	if undoneAt.Valid {
		u := time.Unix(0, undoneAt.Int64).UTC()
		rec.UndoneAt = &u
	}
	rec.BatchID = batchID.String
	rec.Compressed = compressed
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, rec *Record) error {
	if _, err := ParseOpType(string(rec.Type)); err != nil {
		return err
	}
	var confidence sql.NullFloat64
	if rec.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *rec.Confidence, Valid: true}
	}
	var undoneAt sql.NullInt64
	if rec.UndoneAt != nil {
		undoneAt = sql.NullInt64{Int64: rec.UndoneAt.UnixNano(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (type, source, destination, rule_name, confidence, created_at, undone_at, batch_id, compressed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Type), rec.Source, nullString(rec.Destination), nullString(rec.RuleName),
		confidence, rec.CreatedAt.UnixNano(), undoneAt, nullString(rec.BatchID), rec.Compressed)
	if err != nil {
		return fmt.Errorf("writing operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading operation id: %w", err)
	}
	rec.ID = id
	s.logger.Debug("recorded operation", "id", rec.ID, "type", rec.Type, "source", rec.Source)
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM operations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recordNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading operation %d: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx, `SELECT `+recordColumns+` FROM operations ORDER BY id DESC LIMIT ?`, limit)
}

// ListBatch implements Store.
func (s *SQLiteStore) ListBatch(ctx context.Context, batchID string) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM operations WHERE batch_id = ? ORDER BY id DESC`, batchID)
}

// LatestBatch implements Store.
func (s *SQLiteStore) LatestBatch(ctx context.Context) (string, error) {
	var batch string
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id FROM operations WHERE batch_id IS NOT NULL AND batch_id != '' ORDER BY id DESC LIMIT 1`).Scan(&batch)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no batch recorded", types.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading latest batch: %w", err)
	}
	return batch, nil
}

// MarkUndone implements Store. The conditional update never overwrites an
// existing stamp.
func (s *SQLiteStore) MarkUndone(ctx context.Context, id int64, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE operations SET undone_at = ? WHERE id = ? AND undone_at IS NULL`, t.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("marking operation %d undone: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return alreadyUndone(id)
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM operations WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned operations", "count", n, "before", before)
	}
	return int(n), nil
}

// TrackPath implements Store.
func (s *SQLiteStore) TrackPath(ctx context.Context, ref PathRef) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO path_refs (path, size, mod_time, category, rule, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET size = excluded.size, mod_time = excluded.mod_time,
		   category = excluded.category, rule = excluded.rule, updated_at = excluded.updated_at`,
		ref.Path, ref.Size, ref.ModTime.UnixNano(), nullString(string(ref.Category)), nullString(ref.Rule),
		ref.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("tracking %s: %w", ref.Path, err)
	}
	return nil
}

// LookupPath implements Store.
func (s *SQLiteStore) LookupPath(ctx context.Context, path string) (*PathRef, error) {
	var (
		ref       PathRef
		modTime   int64
		updatedAt int64
		category  sql.NullString
		rule      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT path, size, mod_time, category, rule, updated_at FROM path_refs WHERE path = ?`, path).
		Scan(&ref.Path, &ref.Size, &modTime, &category, &rule, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: path %s", types.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", path, err)
	}
	ref.ModTime = time.Unix(0, modTime).UTC()
	ref.UpdatedAt = time.Unix(0, updatedAt).UTC()
	ref.Category = types.Category(category.String)
	ref.Rule = rule.String
	return &ref, nil
}

// UpdatePathReferences implements Store.
func (s *SQLiteStore) UpdatePathReferences(ctx context.Context, oldPath, newPath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT path FROM path_refs WHERE path = ?1 OR substr(path, 1, length(?2)) = ?2`,
		oldPath, oldPath+string(filepath.Separator))
	if err != nil {
		return fmt.Errorf("finding references under %s: %w", oldPath, err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return err
		}
		paths = append(paths, p)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range paths {
		target, ok := rebase(p, oldPath, newPath)
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM path_refs WHERE path = ?`, target); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE path_refs SET path = ? WHERE path = ?`, target, p); err != nil {
			return fmt.Errorf("rewriting %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
