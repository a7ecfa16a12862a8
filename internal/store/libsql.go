package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/ffts/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db   *sql.DB
	busy busyPolicy
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/ffts.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db, busy: defaultBusyPolicy}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// SchemaVersion returns the highest applied migration.
func (s *LibSQLStore) SchemaVersion(ctx context.Context) (int, error) {
	return appliedVersion(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Builds ---

// SaveBuild derives the header counts and wire bytes from b.Table when they
// are missing, then inserts the build under the next revision.
func (s *LibSQLStore) SaveBuild(ctx context.Context, b *Build) error {
	if b.Table == nil {
		return schema.NewError(schema.ErrCodeValidation, "build has no table")
	}
	if b.Partition == "" {
		b.Partition = b.Table.Partition
	}
	if b.Partition == "" {
		return schema.NewError(schema.ErrCodeValidation, "build has no partition name")
	}
	b.Ready = b.Table.ReadyContextCount
	b.Total = b.Table.TotalContextCount
	b.Labels = b.Table.LabelCount()
	if b.Wire == nil {
		wire, err := schema.EncodeTaskGraph(b.Table)
		if err != nil {
			return err
		}
		b.Wire = wire
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.CreatedAt = timeOrNow(b.CreatedAt)

	table, err := json.Marshal(b.Table)
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}
	warnings, err := marshalOrNull(b.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	err = withBusyRetry(ctx, s.busy, func() error {
		return s.insertBuild(ctx, b, string(table), warnings)
	})
	if err != nil {
		return storeError("save build", err)
	}
	return nil
}

// insertBuild reads the next revision and inserts in one transaction.
func (s *LibSQLStore) insertBuild(ctx context.Context, b *Build, table string, warnings any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), 0) + 1 FROM builds WHERE partition = ?`, b.Partition,
	).Scan(&rev); err != nil {
		return fmt.Errorf("next revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO builds (id, partition, revision, profile, ready_count, total_count, label_count, table_json, wire, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Partition, rev, nullStr(b.Profile), b.Ready, b.Total, b.Labels, table, b.Wire, warnings, b.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit build: %w", err)
	}
	b.Revision = rev
	return nil
}

const buildColumns = `id, partition, revision, profile, ready_count, total_count, label_count, table_json, wire, warnings, created_at`

func (s *LibSQLStore) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("build", id)
	}
	return b, err
}

func (s *LibSQLStore) LatestBuild(ctx context.Context, partition string) (*Build, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+buildColumns+` FROM builds WHERE partition = ? ORDER BY revision DESC LIMIT 1`, partition)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("partition", partition)
	}
	return b, err
}

func scanBuild(row *sql.Row) (*Build, error) {
	b := &Build{}
	var (
		profile, warnings sql.NullString
		table             string
		wire              []byte
	)
	if err := row.Scan(&b.ID, &b.Partition, &b.Revision, &profile, &b.Ready, &b.Total, &b.Labels,
		&table, &wire, &warnings, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Profile = profile.String
	b.Wire = wire
	b.Table = &schema.TaskGraph{}
	if err := json.Unmarshal([]byte(table), b.Table); err != nil {
		return nil, storeError("unmarshal table", err)
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &b.Warnings); err != nil {
			return nil, storeError("unmarshal warnings", err)
		}
	}
	return b, nil
}

func (s *LibSQLStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]*BuildSummary, error) {
	var where []string
	var args []any

	if filter.Partition != "" {
		where = append(where, "partition = ?")
		args = append(args, filter.Partition)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	q := `SELECT id, partition, revision, profile, ready_count, total_count, label_count, created_at FROM builds`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, revision DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeError("list builds", err)
	}
	defer rows.Close()

	var out []*BuildSummary
	for rows.Next() {
		b := &BuildSummary{}
		var profile sql.NullString
		if err := rows.Scan(&b.ID, &b.Partition, &b.Revision, &profile, &b.Ready, &b.Total, &b.Labels, &b.CreatedAt); err != nil {
			return nil, storeError("scan build", err)
		}
		b.Profile = profile.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteBuild(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, id)
	if err != nil {
		return storeError("delete build", err)
	}
	return checkRowsAffected(res, "build", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FftsError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op string, err error) error {
	var fe *schema.FftsError
	if errors.As(err, &fe) {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalOrNull[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
