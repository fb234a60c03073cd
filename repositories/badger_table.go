package repositories

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
)

// storedRow is the badger value of one record.
// Seq is assigned on first insert and kept on every update.
type storedRow struct {
	Seq    uint64         `cbor:"1,keyasint"`
	Fields map[string]any `cbor:"2,keyasint"`
}

// BadgerStorage shares one badger database between every room.
// Rooms are isolated by key prefix: room:{party}:{room}:{table}:...
type BadgerStorage struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerStorage(db *badger.DB, log *slog.Logger) *BadgerStorage {
	return &BadgerStorage{db: db, log: log}
}

func (s *BadgerStorage) Open(_ context.Context, party domain.Party, room domain.RoomID) (contract.Table, error) {
	if _, err := domain.ParseRoomID(string(room)); err != nil {
		return nil, err
	}
	if !party.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownParty, party)
	}
	s.log.Debug("Opened room keyspace", "party", party, "room", room)
	return &BadgerTable{
		db:      s.db,
		prefix:  fmt.Sprintf("room:%s:%s:", party, room),
		schemas: make(map[string]contract.Schema),
	}, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

type BadgerTable struct {
	db      *badger.DB
	prefix  string
	mu      sync.RWMutex
	schemas map[string]contract.Schema
}

// EnsureTable only records the schema, badger has nothing to create.
func (t *BadgerTable) EnsureTable(_ context.Context, schema contract.Schema) error {
	if err := checkSchema(schema); err != nil {
		return err
	}
	t.mu.Lock()
	t.schemas[schema.Name] = schema
	t.mu.Unlock()
	return nil
}

func (t *BadgerTable) InsertOrUpdate(ctx context.Context, table, key string, fields contract.Row) error {
	schema, err := t.schema(table)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	values := make(map[string]any, len(schema.Columns))
	for _, c := range schema.Columns {
		if c.Name == schema.Key {
			values[c.Name] = key
			continue
		}
		values[c.Name] = fields[c.Name]
	}
	rowKey := t.rowKey(table, key)
	err = t.db.Update(func(txn *badger.Txn) error {
		seq, err := t.existingSeq(txn, rowKey)
		if err != nil {
			return err
		}
		if seq == 0 {
			if seq, err = t.nextSeq(txn, table); err != nil {
				return err
			}
		}
		data, err := marshal(storedRow{Seq: seq, Fields: values})
		if err != nil {
			return err
		}
		return txn.Set(rowKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", table, key, err)
	}
	return nil
}

func (t *BadgerTable) SelectAll(ctx context.Context, table string) ([]contract.Row, error) {
	schema, err := t.schema(table)
	if err != nil {
		return nil, err
	}
	var stored []storedRow
	err = t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.rowPrefix(table)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var row storedRow
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &row)
			}); err != nil {
				return err
			}
			stored = append(stored, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Seq < stored[j].Seq })
	return lo.Map(stored, func(r storedRow, _ int) contract.Row {
		return normalize(schema, r.Fields)
	}), nil
}

func (t *BadgerTable) DeleteByKey(_ context.Context, table, key string) error {
	if _, err := t.schema(table); err != nil {
		return err
	}
	err := t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(t.rowKey(table, key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, key, err)
	}
	return nil
}

// Close is a no-op, the database belongs to the storage.
func (t *BadgerTable) Close() error { return nil }

func (t *BadgerTable) schema(table string) (contract.Schema, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	schema, ok := t.schemas[table]
	if !ok {
		return contract.Schema{}, fmt.Errorf("%w: %s", errors.ErrTableMissing, table)
	}
	return schema, nil
}

func (t *BadgerTable) rowPrefix(table string) []byte {
	return []byte(t.prefix + table + ":row:")
}

func (t *BadgerTable) rowKey(table, key string) []byte {
	return append(t.rowPrefix(table), key...)
}

func (t *BadgerTable) existingSeq(txn *badger.Txn, rowKey []byte) (uint64, error) {
	item, err := txn.Get(rowKey)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var row storedRow
	if err = item.Value(func(val []byte) error { return unmarshal(val, &row) }); err != nil {
		return 0, err
	}
	return row.Seq, nil
}

func (t *BadgerTable) nextSeq(txn *badger.Txn, table string) (uint64, error) {
	seqKey := []byte(t.prefix + table + ":seq")
	var current uint64
	item, err := txn.Get(seqKey)
	switch {
	case err == badger.ErrKeyNotFound:
	case err != nil:
		return 0, err
	default:
		if err = item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	}
	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return next, txn.Set(seqKey, buf)
}

// normalize maps decoded CBOR values back onto the column types:
// integers come back as uint64 or int64 depending on sign.
func normalize(schema contract.Schema, fields map[string]any) contract.Row {
	row := make(contract.Row, len(schema.Columns))
	for _, c := range schema.Columns {
		v := fields[c.Name]
		switch c.Type {
		case contract.IntegerColumn:
			row[c.Name] = toInt64(v)
		case contract.BoolColumn:
			b, _ := v.(bool)
			row[c.Name] = b
		default:
			s, _ := v.(string)
			row[c.Name] = s
		}
	}
	return row
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
