package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tandem/domain"
	"tandem/errors"
	"tandem/services"
	"tandem/sink"
)

const writeWait = 10 * time.Second

type ChatRooms interface {
	Get(ctx context.Context, id domain.RoomID) (*services.ChatRoom, error)
}

// socketWriter frames sink payloads as websocket text messages.
type socketWriter struct {
	conn *websocket.Conn
}

func (w socketWriter) Write(payload []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w socketWriter) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

// chatSocket upgrades the request and runs the connection until either side leaves.
// Reads happen here; writes only happen in the sink pump, gorilla allows one of each.
func (s *Server) chatSocket(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRoomID(mux.Vars(r)["room"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	room, err := s.chats.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade", "room", id, "error", err)
		return
	}
	conn.SetReadLimit(s.opts.MaxMessageBytes)

	connID := uuid.NewString()
	log := s.log.With("party", domain.PartyChat, "room", id, "conn", connID)
	out := sink.NewSocketSink(s.opts.ConnectionBufferSize)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := out.Run(r.Context(), socketWriter{conn: conn}); err != nil {
			log.Debug("Writer stopped", "error", err)
		}
	}()

	if err = room.OnConnect(connID, out); err != nil {
		log.Error("Failed to join room", "error", err)
		out.Close()
		<-pumpDone
		return
	}
	defer func() {
		room.OnClose(connID)
		out.Close()
		<-pumpDone
	}()

	limiter := rate.NewLimiter(rate.Limit(s.opts.MessageRate), s.opts.MessageBurst)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Connection lost", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			s.metrics.Rejected("binary")
			continue
		}
		if !limiter.Allow() {
			s.metrics.Rejected("rate")
			log.Debug("Dropping event over rate limit")
			continue
		}
		if err = room.OnMessage(r.Context(), connID, data); err != nil && !stderrors.Is(err, errors.ErrMalformedEvent) {
			log.Warn("Event not stored", "error", err)
		}
	}
}
