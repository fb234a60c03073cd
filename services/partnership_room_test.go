package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"tandem/domain"
	"tandem/errors"
)

func startedPartnershipRoom(t *testing.T, dir string) *PartnershipRoom {
	t.Helper()
	room := NewPartnershipRoom("room", roomTable(t, dir, domain.PartyTandem), time.Second, nil, slog.Default())
	require.NoError(t, room.OnStart(context.Background()))
	return room
}

func TestPartnershipRoom_Seeds_Defaults(t *testing.T) {
	req := require.New(t)
	room := startedPartnershipRoom(t, t.TempDir())

	req.Equal(domain.DefaultPrompts(), room.ListPrompts())
	req.Equal(domain.DefaultContent(), room.ListContent("alex"))
	req.Empty(room.ListTodos())
	req.NotNil(room.ListTodos())
}

func TestPartnershipRoom_Todo_Scenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	room := startedPartnershipRoom(t, dir)

	// Given a new todo
	created, err := room.CreateTodo(ctx, "Book the venue")
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.False(created.Completed)

	// When it is completed
	updated, err := room.UpdateTodo(ctx, created.ID, TodoPatch{Completed: lo.ToPtr(true)})
	req.NoError(err)

	// Then only the completion changed, and it survives a restart
	req.Equal(domain.TodoItem{ID: created.ID, Content: "Book the venue", Completed: true}, updated)
	req.Equal([]domain.TodoItem{updated}, startedPartnershipRoom(t, dir).ListTodos())

	// And unknown ids are reported
	_, err = room.UpdateTodo(ctx, "missing", TodoPatch{Content: lo.ToPtr("x")})
	req.ErrorIs(err, errors.ErrNotFound)
	req.ErrorIs(room.DeleteTodo(ctx, "missing"), errors.ErrNotFound)

	req.NoError(room.DeleteTodo(ctx, created.ID))
	req.Empty(room.ListTodos())
}

func TestPartnershipRoom_Partner_Isolation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	room := startedPartnershipRoom(t, t.TempDir())

	_, err := room.CreateNote(ctx, "alex", "for alex")
	req.NoError(err)
	_, err = room.CreateNote(ctx, "sam", "for sam")
	req.NoError(err)
	_, err = room.CreateContent(ctx, "sam", "sam only")
	req.NoError(err)

	alexNotes := room.ListNotes("alex")
	req.Len(alexNotes, 1)
	req.Equal("for alex", alexNotes[0].Text)

	alexContent := room.ListContent("alex")
	req.Len(alexContent, 1)
	req.Equal("welcome", alexContent[0].ID)

	samContent := room.ListContent("sam")
	req.Len(samContent, 2)
	req.Equal("welcome", samContent[0].ID)
	req.Equal("sam only", samContent[1].Text)
}

func TestPartnershipRoom_Readiness(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	room := startedPartnershipRoom(t, t.TempDir())

	// Given no answers
	req.Zero(room.Readiness("alex"))

	// When alex answers twice, then revises one answer
	_, err := room.Answer(ctx, "alex", "finances", 4)
	req.NoError(err)
	_, err = room.Answer(ctx, "alex", "career", 3)
	req.NoError(err)
	score, err := room.Answer(ctx, "alex", "career", 5)
	req.NoError(err)

	// Then only the latest answer per question counts
	req.Equal(4.5, score)
	req.Equal(4.5, room.Readiness("alex"))
	req.Zero(room.Readiness("sam"))
}

func TestPartnershipRoom_Answer_Validation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	room := startedPartnershipRoom(t, t.TempDir())

	_, err := room.Answer(ctx, "alex", "astrology", 3)
	req.ErrorIs(err, errors.ErrValidation)
	_, err = room.Answer(ctx, "alex", "finances", 0)
	req.ErrorIs(err, errors.ErrValidation)
	_, err = room.Answer(ctx, "alex", "finances", 6)
	req.ErrorIs(err, errors.ErrValidation)

	req.Zero(room.Readiness("alex"))
	req.Len(room.Questions(), len(domain.Questions()))
}
