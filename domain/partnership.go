// Package domain contains core concepts of the room system.
// This file defines the records shared inside a partnership room.
package domain

// Record is anything kept in a room collection. Key is the identity used for upserts.
type Record interface {
	Key() string
}

type TodoItem struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
}

func (t TodoItem) Key() string { return t.ID }

type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (p Prompt) Key() string { return p.ID }

type PartnerNote struct {
	ID      string `json:"id"`
	Partner string `json:"partner"`
	Text    string `json:"text"`
}

func (n PartnerNote) Key() string { return n.ID }

type PartnerContent struct {
	ID      string `json:"id"`
	Partner string `json:"partner"`
	Text    string `json:"text"`
}

func (c PartnerContent) Key() string { return c.ID }

// DefaultPrompts are written to an empty room on first start.
func DefaultPrompts() []Prompt {
	return []Prompt{
		{ID: "finances", Text: "Discuss your finances."},
		{ID: "childcare", Text: "Plan division of childcare."},
		{ID: "career", Text: "Share your career plans."},
	}
}

// DefaultContent is written to an empty room on first start.
func DefaultContent() []PartnerContent {
	return []PartnerContent{
		{ID: "welcome", Partner: DefaultPartner, Text: "Remember to support each other on this journey."},
	}
}
