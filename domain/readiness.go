// Package domain contains core concepts of the room system.
// This file defines the partnership readiness questionnaire and its score.
package domain

import (
	"math"

	"github.com/samber/lo"
)

const (
	MinScore = 1
	MaxScore = 5
)

type PRIQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PRIAnswer is the latest score a partner gave to one question.
// Partner tags are slugs, so the composed key cannot collide.
type PRIAnswer struct {
	Partner    string `json:"partner"`
	QuestionID string `json:"questionId"`
	Score      int    `json:"score"`
}

func (a PRIAnswer) Key() string { return a.Partner + "/" + a.QuestionID }

var questions = []PRIQuestion{
	{ID: "communication", Text: "We talk openly about what worries us."},
	{ID: "finances", Text: "We agree on how we spend and save money."},
	{ID: "household", Text: "We share household work in a way that feels fair."},
	{ID: "parenting", Text: "We have compatible views on raising children."},
	{ID: "career", Text: "We support each other's career goals."},
	{ID: "intimacy", Text: "We feel close and appreciated."},
}

// Questions returns the fixed questionnaire, in display order.
func Questions() []PRIQuestion {
	return append([]PRIQuestion(nil), questions...)
}

func IsQuestion(id string) bool {
	return lo.ContainsBy(questions, func(q PRIQuestion) bool { return q.ID == id })
}

// ReadinessScore is the mean of the latest score per question, rounded half away
// from zero to one decimal. Later answers for a question override earlier ones.
// No answers gives 0.
func ReadinessScore(answers []PRIAnswer) float64 {
	latest := make(map[string]int, len(answers))
	for _, a := range answers {
		latest[a.QuestionID] = a.Score
	}
	if len(latest) == 0 {
		return 0
	}
	total := lo.Sum(lo.Values(latest))
	mean := float64(total) / float64(len(latest))
	return math.Round(mean*10) / 10
}
