package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type todo struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
}

type message struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Messages []message `json:"messages,omitempty"`
}

type testTandemSuite struct {
	BaseHTTPSuite
}

func TestTandemSuite(t *testing.T) {
	suite.Run(t, &testTandemSuite{})
}

func (s *testTandemSuite) TestTodoLifecycle() {
	room := "e2e-" + uuid.NewString()[:8]
	base := "/parties/tandem/" + room
	var created todo

	s.Step("Step 1: Create a todo", func() {
		code := s.Do(http.MethodPost, base+"/todos", map[string]string{"content": "Buy milk"}, &created)
		s.Require().Equal(http.StatusOK, code)
		s.Require().NotEmpty(created.ID)
		s.Require().False(created.Completed)
	})

	s.Step("Step 2: Complete it", func() {
		var updated todo
		code := s.Do(http.MethodPut, base+"/todos/"+created.ID, map[string]bool{"completed": true}, &updated)
		s.Require().Equal(http.StatusOK, code)
		s.Require().True(updated.Completed)
		s.Require().Equal("Buy milk", updated.Content)
	})

	s.Step("Step 3: Delete it and list", func() {
		s.Require().Equal(http.StatusOK, s.Do(http.MethodDelete, base+"/todos/"+created.ID, nil, nil))
		var list struct {
			Todos []todo `json:"todos"`
		}
		s.Require().Equal(http.StatusOK, s.Do(http.MethodGet, base+"/todos", nil, &list))
		s.Require().Empty(list.Todos)
	})

	s.Step("Step 4: Unknown routes answer 404", func() {
		s.Require().Equal(http.StatusNotFound, s.Do(http.MethodGet, base+"/nope", nil, nil))
		s.Require().Equal(http.StatusNotFound, s.Do(http.MethodDelete, base+"/todos/missing", nil, nil))
	})
}

func (s *testTandemSuite) TestReadiness() {
	base := "/parties/tandem/e2e-" + uuid.NewString()[:8]
	var score struct {
		Score float64 `json:"score"`
	}

	s.Step("Answer two questions for one partner", func() {
		s.Require().Equal(http.StatusOK, s.Do(http.MethodPost, base+"/pri?partner=alex",
			map[string]any{"questionId": "communication", "score": 4}, &score))
		s.Require().Equal(http.StatusOK, s.Do(http.MethodPost, base+"/pri?partner=alex",
			map[string]any{"questionId": "finances", "score": 5}, &score))
		s.Require().InDelta(4.5, score.Score, 0.001)
	})

	s.Step("Another partner starts at zero", func() {
		s.Require().Equal(http.StatusOK, s.Do(http.MethodGet, base+"/pri?partner=sam", nil, &score))
		s.Require().Zero(score.Score)
	})
}

func (s *testTandemSuite) TestChatBroadcast() {
	path := "/parties/chat/e2e-" + uuid.NewString()[:8]

	s.Step("Sender is excluded, late joiner sees the history", func() {
		first := s.Dial(path)
		defer first.Close()
		second := s.Dial(path)
		defer second.Close()

		var snapshot message
		s.ReadJSON(first, &snapshot)
		s.Require().Equal("all", snapshot.Type)
		s.ReadJSON(second, &snapshot)
		s.Require().Equal("all", snapshot.Type)

		s.Require().NoError(first.WriteJSON(message{Type: "add", ID: "m1", Role: "user", Content: "hello"}))
		var got message
		s.ReadJSON(second, &got)
		s.Require().Equal("add", got.Type)
		s.Require().Equal("hello", got.Content)

		late := s.Dial(path)
		defer late.Close()
		s.ReadJSON(late, &snapshot)
		s.Require().Len(snapshot.Messages, 1)
		s.Require().Equal("m1", snapshot.Messages[0].ID)
	})
}
