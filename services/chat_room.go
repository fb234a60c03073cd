package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tandem/contract"
	"tandem/domain"
	"tandem/observability"
	"tandem/projection"
	"tandem/runtime"
)

type IChatRoom interface {
	OnConnect(connID string, sink contract.Sink) error
	OnMessage(ctx context.Context, connID string, raw []byte) error
	OnClose(connID string)
}

// ChatRoom keeps the message history of one chat room and relays events between
// its connections. mu orders connects against messages: a new connection gets its
// snapshot before any event that is not already part of it.
type ChatRoom struct {
	id       domain.RoomID
	messages *projection.Collection[domain.ChatMessage]
	registry contract.IRegistry
	metrics  *observability.Metrics
	log      *slog.Logger
	mu       sync.Mutex
}

func NewChatRoom(
	id domain.RoomID,
	table contract.Table,
	writeTimeout time.Duration,
	metrics *observability.Metrics,
	log *slog.Logger,
) *ChatRoom {
	log = log.With("party", domain.PartyChat, "room", id)
	return &ChatRoom{
		id:       id,
		messages: projection.NewCollection(table, projection.MessageMapper, writeTimeout, metrics, log),
		registry: runtime.NewRegistry(log, metrics),
		metrics:  metrics,
		log:      log,
	}
}

func (r *ChatRoom) OnStart(ctx context.Context) error {
	return r.messages.Load(ctx)
}

// OnConnect subscribes the connection, then hands it the whole history.
func (r *ChatRoom) OnConnect(connID string, sink contract.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := r.snapshot()
	if err != nil {
		return err
	}
	r.registry.Subscribe(connID, sink)
	r.registry.SendToOne(connID, payload)
	r.log.Debug("Connection joined", "conn", connID, "subscribers", r.registry.Len())
	return nil
}

// OnMessage relays a valid add or update to every other connection, then stores it.
// A malformed event is dropped and reported, the connection stays open.
// If the store refuses the write after the relay went out, every connection is
// sent a fresh snapshot so no one keeps a message that was never committed.
func (r *ChatRoom) OnMessage(ctx context.Context, connID string, raw []byte) error {
	evt, err := domain.ParseChatEvent(raw)
	if err != nil {
		r.metrics.Rejected("malformed")
		r.log.Debug("Dropping malformed event", "conn", connID, "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry.Broadcast(raw, connID)
	if _, err = r.messages.Upsert(ctx, evt.ChatMessage); err != nil {
		r.log.Error("Message not stored, resyncing connections", "conn", connID, "id", evt.ID, "error", err)
		if payload, snapErr := r.snapshot(); snapErr == nil {
			r.registry.Broadcast(payload)
		}
		return err
	}
	return nil
}

func (r *ChatRoom) OnClose(connID string) {
	r.registry.Unsubscribe(connID)
	r.log.Debug("Connection left", "conn", connID)
}

func (r *ChatRoom) OnStop() {
	r.registry.CloseAll()
}

func (r *ChatRoom) Subscribers() int {
	return r.registry.Len()
}

func (r *ChatRoom) Messages() []domain.ChatMessage {
	return r.messages.Snapshot()
}

func (r *ChatRoom) snapshot() ([]byte, error) {
	return json.Marshal(domain.NewSnapshotEvent(r.messages.Snapshot()))
}
