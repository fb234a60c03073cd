package runtime

import (
	stderrors "errors"
	"log/slog"
	"sync"

	"tandem/contract"
	"tandem/errors"
	"tandem/observability"
)

// Registry holds the live connections of one room.
// The lock is held for the whole fan-out, so two broadcasts never interleave and
// every subscriber sees payloads in the order they were sent.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]contract.Sink // map connection -> Sink
	log      *slog.Logger
	metrics  *observability.Metrics
}

func NewRegistry(log *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]contract.Sink),
		log:      log,
		metrics:  metrics,
	}
}

// Subscribe registers a connection. A second Subscribe with the same id
// replaces the previous sink and closes it.
func (r *Registry) Subscribe(connID string, sink contract.Sink) {
	r.mu.Lock()
	previous, ok := r.sessions[connID]
	r.sessions[connID] = sink
	r.mu.Unlock()

	if ok && previous != sink {
		previous.Close()
	}
}

// Unsubscribe removes a connection. Unknown ids are ignored.
func (r *Registry) Unsubscribe(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

func (r *Registry) SendToOne(connID string, payload []byte) {
	r.mu.Lock()
	sink, ok := r.sessions[connID]
	var evicted contract.Sink
	if ok && r.deliver(connID, sink, payload) {
		evicted = sink
	}
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
}

// Broadcast sends payload to every subscriber except the excluded ones.
// Gone subscribers are dropped silently; slow ones are evicted and closed.
func (r *Registry) Broadcast(payload []byte, exclude ...string) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	r.mu.Lock()
	var evicted []contract.Sink
	for connID, sink := range r.sessions {
		if _, ok := skip[connID]; ok {
			continue
		}
		if r.deliver(connID, sink, payload) {
			evicted = append(evicted, sink)
		}
	}
	r.mu.Unlock()

	for _, sink := range evicted {
		sink.Close()
	}
}

// CloseAll closes and forgets every subscriber.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sinks := r.sessions
	r.sessions = make(map[string]contract.Sink)
	r.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// deliver must be called with mu held. It reports whether the sink has to be closed.
func (r *Registry) deliver(connID string, sink contract.Sink, payload []byte) bool {
	err := sink.Send(payload)
	switch {
	case err == nil:
		return false
	case stderrors.Is(err, errors.ErrSlowSubscriber):
		delete(r.sessions, connID)
		r.metrics.Evicted()
		r.log.Warn("Evicting slow subscriber", "conn", connID)
		return true
	case stderrors.Is(err, errors.ErrSubscriberGone):
		delete(r.sessions, connID)
		return false
	default:
		delete(r.sessions, connID)
		r.log.Warn("Dropping subscriber after send failure", "conn", connID, "error", err)
		return true
	}
}
