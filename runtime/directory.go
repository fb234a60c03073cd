package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
	"tandem/observability"
)

// Room is what the directory starts and stops. Rooms share no mutable state.
type Room interface {
	OnStart(ctx context.Context) error
	Subscribers() int
	OnStop()
}

// Factory builds a room around its own table. It must not do I/O, OnStart does.
type Factory[R Room] func(id domain.RoomID, table contract.Table) R

type entry[R Room] struct {
	ready chan struct{}
	room  R
	table contract.Table
	err   error
}

// Directory lazily starts one room per id for a party.
// Concurrent first requests for the same id wait on a single start. A failed start
// is forgotten, the next request tries again.
type Directory[R Room] struct {
	party   domain.Party
	storage contract.Storage
	factory Factory[R]
	log     *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	rooms  map[domain.RoomID]*entry[R]
	closed bool
}

func NewDirectory[R Room](
	party domain.Party,
	storage contract.Storage,
	factory Factory[R],
	log *slog.Logger,
	metrics *observability.Metrics,
) *Directory[R] {
	return &Directory[R]{
		party:   party,
		storage: storage,
		factory: factory,
		log:     log.With("party", party),
		metrics: metrics,
		rooms:   make(map[domain.RoomID]*entry[R]),
	}
}

func (d *Directory[R]) Party() domain.Party {
	return d.party
}

// Get returns the started room, starting it on first use.
// ctx only bounds the wait: a start in progress is never cancelled by one caller.
func (d *Directory[R]) Get(ctx context.Context, id domain.RoomID) (R, error) {
	var zero R

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return zero, errors.ErrShuttingDown
	}
	e, ok := d.rooms[id]
	if !ok {
		e = &entry[R]{ready: make(chan struct{})}
		d.rooms[id] = e
	}
	d.mu.Unlock()

	if !ok {
		d.start(context.WithoutCancel(ctx), id, e)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if e.err != nil {
		return zero, e.err
	}
	return e.room, nil
}

func (d *Directory[R]) start(ctx context.Context, id domain.RoomID, e *entry[R]) {
	defer close(e.ready)

	table, err := d.storage.Open(ctx, d.party, id)
	if err != nil {
		d.fail(id, e, fmt.Errorf("open room %s: %w", id, err))
		return
	}
	room := d.factory(id, table)
	if err = room.OnStart(ctx); err != nil {
		_ = table.Close()
		d.fail(id, e, fmt.Errorf("start room %s: %w", id, err))
		return
	}
	e.room = room
	e.table = table
	d.metrics.RoomStarted(string(d.party))
	d.log.Info("Room started", "room", id)
}

func (d *Directory[R]) fail(id domain.RoomID, e *entry[R], err error) {
	e.err = err
	d.mu.Lock()
	if d.rooms[id] == e {
		delete(d.rooms, id)
	}
	d.mu.Unlock()
	d.metrics.RoomStartFailed(string(d.party))
	d.log.Error("Room failed to start", "room", id, "error", err)
}

// Close stops every started room and closes its table. Get fails afterwards.
func (d *Directory[R]) Close() {
	d.mu.Lock()
	d.closed = true
	entries := d.rooms
	d.rooms = make(map[domain.RoomID]*entry[R])
	d.mu.Unlock()

	for id, e := range entries {
		<-e.ready
		if e.err != nil {
			continue
		}
		e.room.OnStop()
		if err := e.table.Close(); err != nil {
			d.log.Warn("Failed to close room table", "room", id, "error", err)
		}
	}
}

// Len counts started rooms and rooms being started.
func (d *Directory[R]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// Stats returns the number of started rooms and their live subscribers.
func (d *Directory[R]) Stats() (rooms int, subscribers int) {
	d.mu.Lock()
	entries := make([]*entry[R], 0, len(d.rooms))
	for _, e := range d.rooms {
		entries = append(entries, e)
	}
	d.mu.Unlock()

	for _, e := range entries {
		select {
		case <-e.ready:
			if e.err == nil {
				rooms++
				subscribers += e.room.Subscribers()
			}
		default:
		}
	}
	return rooms, subscribers
}
