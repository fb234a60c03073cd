// Package server exposes rooms over HTTP: a websocket per chat room and a small
// REST surface per partnership room.
package server

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tandem/errors"
	"tandem/observability"
)

type Options struct {
	ConnectionBufferSize int
	MaxMessageBytes      int64
	MessageRate          float64
	MessageBurst         int
}

type Server struct {
	chats       ChatRooms
	partnership PartnershipRooms
	gatherer    prometheus.Gatherer
	metrics     *observability.Metrics
	opts        Options
	upgrader    websocket.Upgrader
	log         *slog.Logger
}

func NewServer(
	chats ChatRooms,
	partnership PartnershipRooms,
	gatherer prometheus.Gatherer,
	metrics *observability.Metrics,
	opts Options,
	log *slog.Logger,
) *Server {
	return &Server{
		chats:       chats,
		partnership: partnership,
		gatherer:    gatherer,
		metrics:     metrics,
		opts:        opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Rooms are public, as any party link is.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Router wires every route. Unknown paths and unsupported methods both answer 404.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.accessLog)
	r.NotFoundHandler = s.accessLog(http.HandlerFunc(s.notFound))
	r.MethodNotAllowedHandler = s.accessLog(http.HandlerFunc(s.notFound))

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.health)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Methods(http.MethodGet).Path("/parties/chat/{room}").HandlerFunc(s.chatSocket)

	const tandem = "/parties/tandem/{room}"
	r.Methods(http.MethodGet).Path(tandem + "/todos").HandlerFunc(s.listTodos)
	r.Methods(http.MethodPost).Path(tandem + "/todos").HandlerFunc(s.createTodo)
	r.Methods(http.MethodPut).Path(tandem + "/todos/{id}").HandlerFunc(s.updateTodo)
	r.Methods(http.MethodDelete).Path(tandem + "/todos/{id}").HandlerFunc(s.deleteTodo)
	r.Methods(http.MethodGet).Path(tandem + "/prompts").HandlerFunc(s.listPrompts)
	r.Methods(http.MethodGet).Path(tandem + "/notes").HandlerFunc(s.listNotes)
	r.Methods(http.MethodPost).Path(tandem + "/notes").HandlerFunc(s.createNote)
	r.Methods(http.MethodGet).Path(tandem + "/content").HandlerFunc(s.listContent)
	r.Methods(http.MethodPost).Path(tandem + "/content").HandlerFunc(s.createContent)
	r.Methods(http.MethodGet).Path(tandem + "/pri/questions").HandlerFunc(s.listQuestions)
	r.Methods(http.MethodGet).Path(tandem + "/pri").HandlerFunc(s.readiness)
	r.Methods(http.MethodPost).Path(tandem + "/pri").HandlerFunc(s.answer)
	return r
}

func (s *Server) accessLog(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, writer, request)
		s.log.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	s.writeError(w, errors.ErrNotFound)
}
