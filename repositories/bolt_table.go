package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	bolt "go.etcd.io/bbolt"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
)

// BoltStorage keeps every room in one bolt file.
// Each room owns a top-level bucket named {party}/{room}, with one nested bucket per table.
type BoltStorage struct {
	db       *bolt.DB
	readOnly bool
	log      *slog.Logger
}

// OpenBoltStorage opens the file at path. A read-only open fails if the file is missing.
func OpenBoltStorage(path string, readOnly bool, log *slog.Logger) (*BoltStorage, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return &BoltStorage{db: db, readOnly: readOnly, log: log}, nil
}

func (s *BoltStorage) Open(_ context.Context, party domain.Party, room domain.RoomID) (contract.Table, error) {
	if _, err := domain.ParseRoomID(string(room)); err != nil {
		return nil, err
	}
	if !party.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownParty, party)
	}
	s.log.Debug("Opened room bucket", "party", party, "room", room)
	return &BoltTable{
		db:       s.db,
		bucket:   []byte(string(party) + "/" + string(room)),
		readOnly: s.readOnly,
		schemas:  make(map[string]contract.Schema),
	}, nil
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

type BoltTable struct {
	db       *bolt.DB
	bucket   []byte
	readOnly bool
	mu       sync.RWMutex
	schemas  map[string]contract.Schema
}

func (t *BoltTable) EnsureTable(_ context.Context, schema contract.Schema) error {
	if err := checkSchema(schema); err != nil {
		return err
	}
	if !t.readOnly {
		err := t.db.Update(func(tx *bolt.Tx) error {
			_, err := t.tableBucket(tx, schema.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", schema.Name, err)
		}
	}
	t.mu.Lock()
	t.schemas[schema.Name] = schema
	t.mu.Unlock()
	return nil
}

func (t *BoltTable) InsertOrUpdate(ctx context.Context, table, key string, fields contract.Row) error {
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
	err = t.db.Update(func(tx *bolt.Tx) error {
		b, err := t.tableBucket(tx, table)
		if err != nil {
			return err
		}
		var row storedRow
		if existing := b.Get([]byte(key)); existing != nil {
			if err = unmarshal(existing, &row); err != nil {
				return err
			}
		} else if row.Seq, err = b.NextSequence(); err != nil {
			return err
		}
		row.Fields = values
		data, err := marshal(row)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", table, key, err)
	}
	return nil
}

func (t *BoltTable) SelectAll(ctx context.Context, table string) ([]contract.Row, error) {
	schema, err := t.schema(table)
	if err != nil {
		return nil, err
	}
	var stored []storedRow
	err = t.db.View(func(tx *bolt.Tx) error {
		b := t.existingBucket(tx, table)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var row storedRow
			if err := unmarshal(v, &row); err != nil {
				return err
			}
			stored = append(stored, row)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Seq < stored[j].Seq })
	return lo.Map(stored, func(r storedRow, _ int) contract.Row {
		return normalize(schema, r.Fields)
	}), nil
}

func (t *BoltTable) DeleteByKey(_ context.Context, table, key string) error {
	if _, err := t.schema(table); err != nil {
		return err
	}
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := t.existingBucket(tx, table)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, key, err)
	}
	return nil
}

// Close is a no-op, the file belongs to the storage.
func (t *BoltTable) Close() error { return nil }

func (t *BoltTable) schema(table string) (contract.Schema, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	schema, ok := t.schemas[table]
	if !ok {
		return contract.Schema{}, fmt.Errorf("%w: %s", errors.ErrTableMissing, table)
	}
	return schema, nil
}

// tableBucket creates the room and table buckets on demand. Only valid in a write transaction.
func (t *BoltTable) tableBucket(tx *bolt.Tx, table string) (*bolt.Bucket, error) {
	room, err := tx.CreateBucketIfNotExists(t.bucket)
	if err != nil {
		return nil, err
	}
	return room.CreateBucketIfNotExists([]byte(table))
}

func (t *BoltTable) existingBucket(tx *bolt.Tx, table string) *bolt.Bucket {
	room := tx.Bucket(t.bucket)
	if room == nil {
		return nil
	}
	return room.Bucket([]byte(table))
}
