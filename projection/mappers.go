package projection

import (
	"fmt"

	"tandem/contract"
	"tandem/domain"
)

const (
	MessagesTable   = "messages"
	TodosTable      = "todos"
	PromptsTable    = "prompts"
	NotesTable      = "notes"
	ContentsTable   = "contents"
	PRIAnswersTable = "pri_answers"
)

func text(name string) contract.Column { return contract.Column{Name: name, Type: contract.TextColumn} }
func integer(name string) contract.Column { return contract.Column{Name: name, Type: contract.IntegerColumn} }
func boolean(name string) contract.Column { return contract.Column{Name: name, Type: contract.BoolColumn} }

var MessageMapper = Mapper[domain.ChatMessage]{
	Schema: contract.Schema{
		Name:    MessagesTable,
		Key:     "id",
		Columns: []contract.Column{text("id"), text("user"), text("role"), text("content")},
	},
	ToRow: func(m domain.ChatMessage) contract.Row {
		return contract.Row{"id": m.ID, "user": m.User, "role": string(m.Role), "content": m.Content}
	},
	FromRow: func(row contract.Row) (domain.ChatMessage, error) {
		id, err := requireKey(row, "id")
		if err != nil {
			return domain.ChatMessage{}, err
		}
		return domain.ChatMessage{
			ID:      id,
			User:    str(row, "user"),
			Role:    domain.Role(str(row, "role")),
			Content: str(row, "content"),
		}, nil
	},
}

var TodoMapper = Mapper[domain.TodoItem]{
	Schema: contract.Schema{
		Name:    TodosTable,
		Key:     "id",
		Columns: []contract.Column{text("id"), text("content"), boolean("completed")},
	},
	ToRow: func(t domain.TodoItem) contract.Row {
		return contract.Row{"id": t.ID, "content": t.Content, "completed": t.Completed}
	},
	FromRow: func(row contract.Row) (domain.TodoItem, error) {
		id, err := requireKey(row, "id")
		if err != nil {
			return domain.TodoItem{}, err
		}
		completed, _ := row["completed"].(bool)
		return domain.TodoItem{ID: id, Content: str(row, "content"), Completed: completed}, nil
	},
}

var PromptMapper = Mapper[domain.Prompt]{
	Schema: contract.Schema{
		Name:    PromptsTable,
		Key:     "id",
		Columns: []contract.Column{text("id"), text("text")},
	},
	ToRow: func(p domain.Prompt) contract.Row {
		return contract.Row{"id": p.ID, "text": p.Text}
	},
	FromRow: func(row contract.Row) (domain.Prompt, error) {
		id, err := requireKey(row, "id")
		if err != nil {
			return domain.Prompt{}, err
		}
		return domain.Prompt{ID: id, Text: str(row, "text")}, nil
	},
}

var NoteMapper = Mapper[domain.PartnerNote]{
	Schema: contract.Schema{
		Name:    NotesTable,
		Key:     "id",
		Columns: []contract.Column{text("id"), text("partner"), text("text")},
	},
	ToRow: func(n domain.PartnerNote) contract.Row {
		return contract.Row{"id": n.ID, "partner": n.Partner, "text": n.Text}
	},
	FromRow: func(row contract.Row) (domain.PartnerNote, error) {
		id, err := requireKey(row, "id")
		if err != nil {
			return domain.PartnerNote{}, err
		}
		return domain.PartnerNote{ID: id, Partner: str(row, "partner"), Text: str(row, "text")}, nil
	},
}

var ContentMapper = Mapper[domain.PartnerContent]{
	Schema: contract.Schema{
		Name:    ContentsTable,
		Key:     "id",
		Columns: []contract.Column{text("id"), text("partner"), text("text")},
	},
	ToRow: func(c domain.PartnerContent) contract.Row {
		return contract.Row{"id": c.ID, "partner": c.Partner, "text": c.Text}
	},
	FromRow: func(row contract.Row) (domain.PartnerContent, error) {
		id, err := requireKey(row, "id")
		if err != nil {
			return domain.PartnerContent{}, err
		}
		return domain.PartnerContent{ID: id, Partner: str(row, "partner"), Text: str(row, "text")}, nil
	},
}

// PRIAnswerMapper stores answers under the composite partner/question key.
var PRIAnswerMapper = Mapper[domain.PRIAnswer]{
	Schema: contract.Schema{
		Name:    PRIAnswersTable,
		Key:     "id",
		Columns: []contract.Column{text("id"), text("partner"), text("question_id"), integer("score")},
	},
	ToRow: func(a domain.PRIAnswer) contract.Row {
		return contract.Row{"id": a.Key(), "partner": a.Partner, "question_id": a.QuestionID, "score": int64(a.Score)}
	},
	FromRow: func(row contract.Row) (domain.PRIAnswer, error) {
		if _, err := requireKey(row, "id"); err != nil {
			return domain.PRIAnswer{}, err
		}
		return domain.PRIAnswer{
			Partner:    str(row, "partner"),
			QuestionID: str(row, "question_id"),
			Score:      int(num(row, "score")),
		}, nil
	},
}

// Schemas lists every table a room may hold, by name.
func Schemas() map[string]contract.Schema {
	return map[string]contract.Schema{
		MessagesTable:   MessageMapper.Schema,
		TodosTable:      TodoMapper.Schema,
		PromptsTable:    PromptMapper.Schema,
		NotesTable:      NoteMapper.Schema,
		ContentsTable:   ContentMapper.Schema,
		PRIAnswersTable: PRIAnswerMapper.Schema,
	}
}

func SchemaFor(name string) (contract.Schema, bool) {
	schema, ok := Schemas()[name]
	return schema, ok
}

func requireKey(row contract.Row, name string) (string, error) {
	id := str(row, name)
	if id == "" {
		return "", fmt.Errorf("row without %s", name)
	}
	return id, nil
}

func str(row contract.Row, name string) string {
	s, _ := row[name].(string)
	return s
}

func num(row contract.Row, name string) int64 {
	switch n := row[name].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
