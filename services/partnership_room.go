package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
	"tandem/observability"
	"tandem/projection"
)

// TodoPatch carries the fields of a todo update. Nil fields are left untouched.
type TodoPatch struct {
	Content   *string
	Completed *bool
}

type IPartnershipRoom interface {
	ListTodos() []domain.TodoItem
	CreateTodo(ctx context.Context, content string) (domain.TodoItem, error)
	UpdateTodo(ctx context.Context, id string, patch TodoPatch) (domain.TodoItem, error)
	DeleteTodo(ctx context.Context, id string) error
	ListPrompts() []domain.Prompt
	ListNotes(partner string) []domain.PartnerNote
	CreateNote(ctx context.Context, partner, text string) (domain.PartnerNote, error)
	ListContent(partner string) []domain.PartnerContent
	CreateContent(ctx context.Context, partner, text string) (domain.PartnerContent, error)
	Questions() []domain.PRIQuestion
	Readiness(partner string) float64
	Answer(ctx context.Context, partner, questionID string, score int) (float64, error)
}

// PartnershipRoom holds the shared planning state of two partners.
// Each collection serializes its own writes; the room adds no lock of its own.
type PartnershipRoom struct {
	id       domain.RoomID
	todos    *projection.Collection[domain.TodoItem]
	prompts  *projection.Collection[domain.Prompt]
	notes    *projection.Collection[domain.PartnerNote]
	contents *projection.Collection[domain.PartnerContent]
	answers  *projection.Collection[domain.PRIAnswer]
	log      *slog.Logger
}

func NewPartnershipRoom(
	id domain.RoomID,
	table contract.Table,
	writeTimeout time.Duration,
	metrics *observability.Metrics,
	log *slog.Logger,
) *PartnershipRoom {
	log = log.With("party", domain.PartyTandem, "room", id)
	return &PartnershipRoom{
		id:       id,
		todos:    projection.NewCollection(table, projection.TodoMapper, writeTimeout, metrics, log),
		prompts:  projection.NewCollection(table, projection.PromptMapper, writeTimeout, metrics, log),
		notes:    projection.NewCollection(table, projection.NoteMapper, writeTimeout, metrics, log),
		contents: projection.NewCollection(table, projection.ContentMapper, writeTimeout, metrics, log),
		answers:  projection.NewCollection(table, projection.PRIAnswerMapper, writeTimeout, metrics, log),
		log:      log,
	}
}

// OnStart loads every collection and seeds an empty room.
func (r *PartnershipRoom) OnStart(ctx context.Context) error {
	for _, load := range []func(context.Context) error{
		r.todos.Load, r.prompts.Load, r.notes.Load, r.contents.Load, r.answers.Load,
	} {
		if err := load(ctx); err != nil {
			return err
		}
	}
	if err := r.prompts.Seed(ctx, domain.DefaultPrompts()); err != nil {
		return err
	}
	return r.contents.Seed(ctx, domain.DefaultContent())
}

// Subscribers is always zero, a partnership room is request driven.
func (r *PartnershipRoom) Subscribers() int { return 0 }

func (r *PartnershipRoom) OnStop() {}

func (r *PartnershipRoom) ListTodos() []domain.TodoItem {
	return r.todos.Snapshot()
}

func (r *PartnershipRoom) CreateTodo(ctx context.Context, content string) (domain.TodoItem, error) {
	return r.todos.Upsert(ctx, domain.TodoItem{ID: domain.NewID(), Content: content})
}

func (r *PartnershipRoom) UpdateTodo(ctx context.Context, id string, patch TodoPatch) (domain.TodoItem, error) {
	return r.todos.Update(ctx, id, func(item domain.TodoItem) (domain.TodoItem, error) {
		if patch.Content != nil {
			item.Content = *patch.Content
		}
		if patch.Completed != nil {
			item.Completed = *patch.Completed
		}
		return item, nil
	})
}

func (r *PartnershipRoom) DeleteTodo(ctx context.Context, id string) error {
	removed, err := r.todos.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: todo %q", errors.ErrNotFound, id)
	}
	return nil
}

func (r *PartnershipRoom) ListPrompts() []domain.Prompt {
	return r.prompts.Snapshot()
}

func (r *PartnershipRoom) ListNotes(partner string) []domain.PartnerNote {
	return r.notes.Snapshot(func(n domain.PartnerNote) bool { return n.Partner == partner })
}

func (r *PartnershipRoom) CreateNote(ctx context.Context, partner, text string) (domain.PartnerNote, error) {
	return r.notes.Upsert(ctx, domain.PartnerNote{ID: domain.NewID(), Partner: partner, Text: text})
}

// ListContent returns the partner's content merged with content shared with everyone.
func (r *PartnershipRoom) ListContent(partner string) []domain.PartnerContent {
	return r.contents.Snapshot(func(c domain.PartnerContent) bool { return domain.VisibleTo(c.Partner, partner) })
}

func (r *PartnershipRoom) CreateContent(ctx context.Context, partner, text string) (domain.PartnerContent, error) {
	return r.contents.Upsert(ctx, domain.PartnerContent{ID: domain.NewID(), Partner: partner, Text: text})
}

func (r *PartnershipRoom) Questions() []domain.PRIQuestion {
	return domain.Questions()
}

func (r *PartnershipRoom) Readiness(partner string) float64 {
	return domain.ReadinessScore(r.answers.Snapshot(func(a domain.PRIAnswer) bool { return a.Partner == partner }))
}

// Answer records the partner's score for one question and returns the new readiness score.
func (r *PartnershipRoom) Answer(ctx context.Context, partner, questionID string, score int) (float64, error) {
	if !domain.IsQuestion(questionID) {
		return 0, fmt.Errorf("%w: unknown question %q", errors.ErrValidation, questionID)
	}
	if score < domain.MinScore || score > domain.MaxScore {
		return 0, fmt.Errorf("%w: score must be between %d and %d", errors.ErrValidation, domain.MinScore, domain.MaxScore)
	}
	answer := domain.PRIAnswer{Partner: partner, QuestionID: questionID, Score: score}
	if _, err := r.answers.Upsert(ctx, answer); err != nil {
		return 0, err
	}
	return r.Readiness(partner), nil
}
