// Package projection keeps the in-memory view of a room's durable tables.
// A Collection is the only path that writes to its table, and the cache it serves
// only ever reflects writes the table accepted.
package projection

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"sync"
	"time"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
	"tandem/observability"
)

// Mapper converts a record to and from the row stored under Schema.
type Mapper[T domain.Record] struct {
	Schema  contract.Schema
	ToRow   func(T) contract.Row
	FromRow func(contract.Row) (T, error)
}

// Collection is an ordered, keyed cache over one durable table.
// Writers are serialized by wmu, which is held across the durable write. The slice and
// index are copy-on-write: mu is only held to swap them, so readers never wait on I/O.
type Collection[T domain.Record] struct {
	table   contract.Table
	mapper  Mapper[T]
	timeout time.Duration
	metrics *observability.Metrics
	log     *slog.Logger

	wmu     sync.Mutex
	mu      sync.RWMutex
	records []T
	index   map[string]int
}

func NewCollection[T domain.Record](
	table contract.Table,
	mapper Mapper[T],
	timeout time.Duration,
	metrics *observability.Metrics,
	log *slog.Logger,
) *Collection[T] {
	return &Collection[T]{
		table:   table,
		mapper:  mapper,
		timeout: timeout,
		metrics: metrics,
		log:     log.With("collection", mapper.Schema.Name),
		index:   make(map[string]int),
	}
}

func (c *Collection[T]) Name() string {
	return c.mapper.Schema.Name
}

// Load ensures the table exists and replaces the cache with its rows, in storage order.
func (c *Collection[T]) Load(ctx context.Context) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.table.EnsureTable(ctx, c.mapper.Schema); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
	rows, err := c.table.SelectAll(ctx, c.mapper.Schema.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
	records := make([]T, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		rec, err := c.mapper.FromRow(row)
		if err != nil {
			return fmt.Errorf("%w: decode %s row: %w", errors.ErrPersistence, c.Name(), err)
		}
		if i, ok := index[rec.Key()]; ok {
			records[i] = rec
			continue
		}
		index[rec.Key()] = len(records)
		records = append(records, rec)
	}
	c.swap(records, index)
	c.log.Debug("Collection loaded", "count", len(records))
	return nil
}

// Seed writes defaults into an empty collection. Rows already loaded win.
func (c *Collection[T]) Seed(ctx context.Context, defaults []T) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if len(c.current()) > 0 {
		return nil
	}
	for _, rec := range defaults {
		if err := c.persist(ctx, rec); err != nil {
			return err
		}
		c.apply(rec)
	}
	c.log.Debug("Collection seeded", "count", len(defaults))
	return nil
}

// Upsert replaces the record with the same key in place, or appends it.
func (c *Collection[T]) Upsert(ctx context.Context, rec T) (T, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.persist(ctx, rec); err != nil {
		var zero T
		return zero, err
	}
	c.apply(rec)
	return rec, nil
}

// Update runs fn on the current record and stores its result.
// fn must keep the key; nothing is written when it returns an error.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	var zero T
	current, ok := c.get(id)
	if !ok {
		return zero, fmt.Errorf("%w: %s %q", errors.ErrNotFound, c.Name(), id)
	}
	next, err := fn(current)
	if err != nil {
		return zero, err
	}
	if next.Key() != id {
		return zero, fmt.Errorf("%w: key changed from %q to %q", errors.ErrValidation, id, next.Key())
	}
	if err = c.persist(ctx, next); err != nil {
		return zero, err
	}
	c.apply(next)
	return next, nil
}

// Remove deletes the record. An absent id is not an error and reports false.
func (c *Collection[T]) Remove(ctx context.Context, id string) (bool, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, ok := c.get(id); !ok {
		return false, nil
	}
	ctx, cancel := c.writeContext(ctx)
	defer cancel()
	err := c.table.DeleteByKey(ctx, c.Name(), id)
	c.metrics.Write(c.Name(), err)
	if err != nil {
		c.log.Error("Failed to delete record", "id", id, "error", err)
		return false, fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}

	current := c.current()
	records := make([]T, 0, len(current)-1)
	index := make(map[string]int, len(current)-1)
	for _, rec := range current {
		if rec.Key() == id {
			continue
		}
		index[rec.Key()] = len(records)
		records = append(records, rec)
	}
	c.swap(records, index)
	return true, nil
}

func (c *Collection[T]) Get(id string) (T, bool) {
	return c.get(id)
}

func (c *Collection[T]) Len() int {
	return len(c.current())
}

// List yields the records matching every filter, in collection order.
// Each iteration works on the snapshot current when it starts.
func (c *Collection[T]) List(filters ...func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, rec := range c.current() {
			if !matches(rec, filters) {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Snapshot collects List into a slice. It is never nil.
func (c *Collection[T]) Snapshot(filters ...func(T) bool) []T {
	out := make([]T, 0)
	for rec := range c.List(filters...) {
		out = append(out, rec)
	}
	return out
}

func (c *Collection[T]) persist(ctx context.Context, rec T) error {
	ctx, cancel := c.writeContext(ctx)
	defer cancel()
	err := c.table.InsertOrUpdate(ctx, c.Name(), rec.Key(), c.mapper.ToRow(rec))
	c.metrics.Write(c.Name(), err)
	if err != nil {
		c.log.Error("Failed to persist record", "id", rec.Key(), "error", err)
		return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
	return nil
}

func (c *Collection[T]) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// apply must be called with wmu held, the only writer of records and index.
func (c *Collection[T]) apply(rec T) {
	current := c.current()
	records := make([]T, len(current), len(current)+1)
	copy(records, current)

	if i, ok := c.index[rec.Key()]; ok {
		records[i] = rec
		c.swap(records, c.index)
		return
	}
	index := maps.Clone(c.index)
	if index == nil {
		index = make(map[string]int, 1)
	}
	index[rec.Key()] = len(records)
	c.swap(append(records, rec), index)
}

func (c *Collection[T]) swap(records []T, index map[string]int) {
	c.mu.Lock()
	c.records = records
	c.index = index
	c.mu.Unlock()
}

func (c *Collection[T]) current() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records
}

func (c *Collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.records[i], true
}

func matches[T any](rec T, filters []func(T) bool) bool {
	for _, f := range filters {
		if !f(rec) {
			return false
		}
	}
	return true
}
