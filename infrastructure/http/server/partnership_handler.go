package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"tandem/domain"
	"tandem/services"
)

type PartnershipRooms interface {
	Get(ctx context.Context, id domain.RoomID) (*services.PartnershipRoom, error)
}

type createTodoRequest struct {
	Content string `json:"content" validate:"required,max=4096"`
}

type updateTodoRequest struct {
	Content   *string `json:"content" validate:"omitempty,min=1,max=4096"`
	Completed *bool   `json:"completed"`
}

type textRequest struct {
	Text    string `json:"text" validate:"required,max=4096"`
	Partner string `json:"partner" validate:"omitempty,slug"`
}

type answerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Score      int    `json:"score" validate:"min=1,max=5"`
	Partner    string `json:"partner" validate:"omitempty,slug"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// room resolves the partnership room named in the path, starting it if needed.
func (s *Server) room(w http.ResponseWriter, r *http.Request) (*services.PartnershipRoom, bool) {
	id, err := domain.ParseRoomID(mux.Vars(r)["room"])
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	room, err := s.partnership.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return room, true
}

// partner reads the partner tag from the query; a body tag, when given, wins.
func partner(r *http.Request, fromBody string) (string, error) {
	if fromBody != "" {
		return domain.ParsePartner(fromBody)
	}
	return domain.ParsePartner(r.URL.Query().Get("partner"))
}

func (s *Server) listTodos(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"todos": room.ListTodos()})
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var body createTodoRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	todo, err := room.CreateTodo(r.Context(), body.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, todo)
}

func (s *Server) updateTodo(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var body updateTodoRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	todo, err := room.UpdateTodo(r.Context(), mux.Vars(r)["id"], services.TodoPatch{
		Content:   body.Content,
		Completed: body.Completed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, todo)
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	if err := room.DeleteTodo(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"prompts": room.ListPrompts()})
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	p, err := partner(r, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"notes": room.ListNotes(p)})
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var body textRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := partner(r, body.Partner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	note, err := room.CreateNote(r.Context(), p, body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, note)
}

func (s *Server) listContent(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	p, err := partner(r, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"content": room.ListContent(p)})
}

func (s *Server) createContent(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var body textRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := partner(r, body.Partner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	content, err := room.CreateContent(r.Context(), p, body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, content)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"questions": room.Questions()})
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	p, err := partner(r, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, scoreResponse{Score: room.Readiness(p)})
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var body answerRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := partner(r, body.Partner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	score, err := room.Answer(r.Context(), p, body.QuestionID, body.Score)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, scoreResponse{Score: score})
}
