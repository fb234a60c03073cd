package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"

	_ "github.com/mattn/go-sqlite3"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLiteStorage keeps every room in its own database file:
// {dir}/{party}/{room}.sqlite3. Only the room owning the file ever opens it.
type SQLiteStorage struct {
	dir      string
	readOnly bool
	log      *slog.Logger
}

func NewSQLiteStorage(dir string, readOnly bool, log *slog.Logger) *SQLiteStorage {
	return &SQLiteStorage{dir: dir, readOnly: readOnly, log: log}
}

func (s *SQLiteStorage) Open(ctx context.Context, party domain.Party, room domain.RoomID) (contract.Table, error) {
	if _, err := domain.ParseRoomID(string(room)); err != nil {
		return nil, err
	}
	if !party.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownParty, party)
	}
	dir := filepath.Join(s.dir, string(party))
	path := filepath.Join(dir, string(room)+".sqlite3")
	dsn := "file:" + path + "?_busy_timeout=5000"
	if s.readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		dsn += "&mode=ro"
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// One writer per file, the room is the only client.
	db.SetMaxOpenConns(1)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	s.log.Debug("Opened room database", "party", party, "room", room, "path", path)
	return &SQLiteTable{
		db:       db,
		readOnly: s.readOnly,
		schemas:  make(map[string]contract.Schema),
		absent:   make(map[string]bool),
	}, nil
}

func (s *SQLiteStorage) Close() error { return nil }

// SQLiteTable implements the durable table on top of database/sql.
// Every value goes through a placeholder; identifiers come from schemas and are checked
// against identifierPattern before being quoted into statements.
type SQLiteTable struct {
	db       *sql.DB
	readOnly bool
	mu       sync.RWMutex
	schemas  map[string]contract.Schema
	// absent holds tables a read-only database never created.
	absent map[string]bool
}

func (t *SQLiteTable) EnsureTable(ctx context.Context, schema contract.Schema) error {
	if err := checkSchema(schema); err != nil {
		return err
	}
	if t.readOnly {
		return t.lookupTable(ctx, schema)
	}
	columns := lo.Map(schema.Columns, func(c contract.Column, _ int) string {
		definition := quote(c.Name) + " " + sqlType(c.Type)
		if c.Name == schema.Key {
			definition += " PRIMARY KEY"
		}
		return definition
	})
	statement := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(schema.Name), strings.Join(columns, ", "))
	if _, err := t.db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.Name, err)
	}
	t.mu.Lock()
	t.schemas[schema.Name] = schema
	t.mu.Unlock()
	return nil
}

// InsertOrUpdate writes the full field set. An existing row keeps its rowid,
// so SelectAll still returns it at its original position.
func (t *SQLiteTable) InsertOrUpdate(ctx context.Context, table, key string, fields contract.Row) error {
	schema, err := t.schema(table)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(schema.Columns))
	values := make([]any, 0, len(schema.Columns))
	updates := make([]string, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		names = append(names, quote(c.Name))
		if c.Name == schema.Key {
			values = append(values, key)
			continue
		}
		values = append(values, fields[c.Name])
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(c.Name), quote(c.Name)))
	}
	statement := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO ",
		quote(table), strings.Join(names, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "),
		quote(schema.Key))
	if len(updates) == 0 {
		statement += "NOTHING"
	} else {
		statement += "UPDATE SET " + strings.Join(updates, ", ")
	}
	if _, err = t.db.ExecContext(ctx, statement, values...); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", table, key, err)
	}
	return nil
}

func (t *SQLiteTable) SelectAll(ctx context.Context, table string) ([]contract.Row, error) {
	schema, err := t.schema(table)
	if err != nil {
		return nil, err
	}
	names := lo.Map(schema.Columns, func(c contract.Column, _ int) string { return quote(c.Name) })
	if t.isAbsent(table) {
		return nil, nil
	}
	statement := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(names, ", "), quote(table))
	rows, err := t.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var result []contract.Row
	for rows.Next() {
		targets := lo.Map(schema.Columns, func(c contract.Column, _ int) any { return scanTarget(c.Type) })
		if err = rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		row := make(contract.Row, len(schema.Columns))
		for i, c := range schema.Columns {
			row[c.Name] = scannedValue(c.Type, targets[i])
		}
		result = append(result, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return result, nil
}

func (t *SQLiteTable) DeleteByKey(ctx context.Context, table, key string) error {
	schema, err := t.schema(table)
	if err != nil {
		return err
	}
	statement := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(table), quote(schema.Key))
	if _, err = t.db.ExecContext(ctx, statement, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, key, err)
	}
	return nil
}

func (t *SQLiteTable) Close() error {
	return t.db.Close()
}

func (t *SQLiteTable) lookupTable(ctx context.Context, schema contract.Schema) error {
	var count int
	row := t.db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", schema.Name)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("failed to look up table %s: %w", schema.Name, err)
	}
	t.mu.Lock()
	t.schemas[schema.Name] = schema
	t.absent[schema.Name] = count == 0
	t.mu.Unlock()
	return nil
}

func (t *SQLiteTable) isAbsent(table string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.absent[table]
}

func (t *SQLiteTable) schema(table string) (contract.Schema, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	schema, ok := t.schemas[table]
	if !ok {
		return contract.Schema{}, fmt.Errorf("%w: %s", errors.ErrTableMissing, table)
	}
	return schema, nil
}

func checkSchema(schema contract.Schema) error {
	if !identifierPattern.MatchString(schema.Name) {
		return fmt.Errorf("%w: %q", errors.ErrInvalidIdentity, schema.Name)
	}
	hasKey := false
	for _, c := range schema.Columns {
		if !identifierPattern.MatchString(c.Name) {
			return fmt.Errorf("%w: %q", errors.ErrInvalidIdentity, c.Name)
		}
		if c.Name == schema.Key {
			if c.Type != contract.TextColumn {
				return fmt.Errorf("%w: key %q must be a text column", errors.ErrInvalidIdentity, c.Name)
			}
			hasKey = true
		}
	}
	if !hasKey {
		return fmt.Errorf("%w: key %q is not a column of %s", errors.ErrInvalidIdentity, schema.Key, schema.Name)
	}
	return nil
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}

func sqlType(t contract.ColumnType) string {
	switch t {
	case contract.IntegerColumn, contract.BoolColumn:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func scanTarget(t contract.ColumnType) any {
	switch t {
	case contract.IntegerColumn, contract.BoolColumn:
		return new(sql.NullInt64)
	default:
		return new(sql.NullString)
	}
}

func scannedValue(t contract.ColumnType, target any) any {
	switch t {
	case contract.IntegerColumn:
		return target.(*sql.NullInt64).Int64
	case contract.BoolColumn:
		return target.(*sql.NullInt64).Int64 != 0
	default:
		return target.(*sql.NullString).String
	}
}
