package repositories

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tandem/contract"
	"tandem/domain"
	"tandem/errors"
)

var todoSchema = contract.Schema{
	Name: "todos",
	Key:  "id",
	Columns: []contract.Column{
		{Name: "id", Type: contract.TextColumn},
		{Name: "content", Type: contract.TextColumn},
		{Name: "completed", Type: contract.BoolColumn},
		{Name: "position", Type: contract.IntegerColumn},
	},
}

type backend struct {
	name string
	open func(t *testing.T, dir string) contract.Storage
}

func backends() []backend {
	return []backend{
		{
			name: DriverSQLite,
			open: func(t *testing.T, dir string) contract.Storage {
				storage, err := NewStorage(Options{Driver: DriverSQLite, SQLiteDir: dir}, slog.Default())
				require.NoError(t, err)
				return storage
			},
		},
		{
			name: DriverBadger,
			open: func(t *testing.T, dir string) contract.Storage {
				storage, err := NewStorage(Options{Driver: DriverBadger, BadgerPath: dir}, slog.Default())
				require.NoError(t, err)
				return storage
			},
		},
		{
			name: DriverBolt,
			open: func(t *testing.T, dir string) contract.Storage {
				storage, err := NewStorage(Options{Driver: DriverBolt, BoltPath: filepath.Join(dir, "tandem.bolt")}, slog.Default())
				require.NoError(t, err)
				return storage
			},
		},
	}
}

func openTodos(t *testing.T, storage contract.Storage, room domain.RoomID) contract.Table {
	req := require.New(t)
	table, err := storage.Open(context.Background(), domain.PartyTandem, room)
	req.NoError(err)
	req.NoError(table.EnsureTable(context.Background(), todoSchema))
	return table
}

func TestTable_Insert_Update_Keeps_Order(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			storage := b.open(t, t.TempDir())
			defer storage.Close()
			table := openTodos(t, storage, "r1")
			defer table.Close()

			// Given three rows inserted in order
			req.NoError(table.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "first", "completed": false, "position": int64(1)}))
			req.NoError(table.InsertOrUpdate(ctx, "todos", "b", contract.Row{"content": "second", "completed": false, "position": int64(2)}))
			req.NoError(table.InsertOrUpdate(ctx, "todos", "c", contract.Row{"content": "third", "completed": false, "position": int64(3)}))

			// When the first one is updated
			req.NoError(table.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "first, again", "completed": true, "position": int64(1)}))

			// Then it keeps its position and carries the new values
			rows, err := table.SelectAll(ctx, "todos")
			req.NoError(err)
			req.Len(rows, 3)
			req.Equal(contract.Row{"id": "a", "content": "first, again", "completed": true, "position": int64(1)}, rows[0])
			req.Equal("b", rows[1]["id"])
			req.Equal("c", rows[2]["id"])
		})
	}
}

func TestTable_Content_Is_Stored_Verbatim(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			storage := b.open(t, t.TempDir())
			defer storage.Close()
			table := openTodos(t, storage, "r1")
			defer table.Close()

			content := `it's "quoted"; DROP TABLE todos; --`
			req.NoError(table.InsertOrUpdate(ctx, "todos", "x'1", contract.Row{"content": content}))

			rows, err := table.SelectAll(ctx, "todos")
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("x'1", rows[0]["id"])
			req.Equal(content, rows[0]["content"])
			req.Equal(false, rows[0]["completed"])
		})
	}
}

func TestTable_Delete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			storage := b.open(t, t.TempDir())
			defer storage.Close()
			table := openTodos(t, storage, "r1")
			defer table.Close()

			req.NoError(table.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "a"}))
			req.NoError(table.InsertOrUpdate(ctx, "todos", "b", contract.Row{"content": "b"}))

			// When a row is deleted, then deleting it again is still fine
			req.NoError(table.DeleteByKey(ctx, "todos", "a"))
			req.NoError(table.DeleteByKey(ctx, "todos", "a"))

			rows, err := table.SelectAll(ctx, "todos")
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("b", rows[0]["id"])
		})
	}
}

func TestTable_Rows_Survive_Reopen(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			dir := t.TempDir()

			// Given a row written then the storage closed
			storage := b.open(t, dir)
			table := openTodos(t, storage, "r1")
			req.NoError(table.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "kept"}))
			req.NoError(table.InsertOrUpdate(ctx, "todos", "b", contract.Row{"content": "kept too"}))
			req.NoError(table.Close())
			req.NoError(storage.Close())

			// When it is opened again
			storage = b.open(t, dir)
			defer storage.Close()
			table = openTodos(t, storage, "r1")
			defer table.Close()

			// Then the rows come back in insertion order
			rows, err := table.SelectAll(ctx, "todos")
			req.NoError(err)
			req.Len(rows, 2)
			req.Equal("kept", rows[0]["content"])
			req.Equal("kept too", rows[1]["content"])

			// And a new row lands after them
			req.NoError(table.InsertOrUpdate(ctx, "todos", "c", contract.Row{"content": "new"}))
			rows, err = table.SelectAll(ctx, "todos")
			req.NoError(err)
			req.Equal("c", rows[2]["id"])
		})
	}
}

func TestTable_Rooms_Are_Isolated(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			storage := b.open(t, t.TempDir())
			defer storage.Close()
			first := openTodos(t, storage, "r1")
			defer first.Close()
			second := openTodos(t, storage, "r2")
			defer second.Close()

			req.NoError(first.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "only in r1"}))

			rows, err := second.SelectAll(ctx, "todos")
			req.NoError(err)
			req.Empty(rows)
		})
	}
}

func TestTable_Rejects_Unknown_Table_And_Bad_Identifiers(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			storage := b.open(t, t.TempDir())
			defer storage.Close()
			table := openTodos(t, storage, "r1")
			defer table.Close()

			err := table.InsertOrUpdate(ctx, "notes", "a", contract.Row{})
			req.ErrorIs(err, errors.ErrTableMissing)

			err = table.EnsureTable(ctx, contract.Schema{
				Name:    "notes; drop",
				Key:     "id",
				Columns: []contract.Column{{Name: "id"}},
			})
			req.ErrorIs(err, errors.ErrInvalidIdentity)

			err = table.EnsureTable(ctx, contract.Schema{
				Name:    "notes",
				Key:     "missing",
				Columns: []contract.Column{{Name: "id"}},
			})
			req.ErrorIs(err, errors.ErrInvalidIdentity)
		})
	}
}

func TestStorage_Open_Rejects_Invalid_Room(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			req := require.New(t)
			storage := b.open(t, t.TempDir())
			defer storage.Close()

			_, err := storage.Open(context.Background(), domain.PartyChat, "../escape")
			req.ErrorIs(err, errors.ErrInvalidRoomID)

			_, err = storage.Open(context.Background(), domain.Party("other"), "r1")
			req.ErrorIs(err, errors.ErrUnknownParty)
		})
	}
}

func TestSQLite_ReadOnly_Reports_Missing_Table_As_Empty(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	// Given a room database that only has todos
	writer := NewSQLiteStorage(dir, false, slog.Default())
	table := openTodos(t, writer, "r1")
	req.NoError(table.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "a"}))
	req.NoError(table.Close())

	// When it is opened read-only
	reader := NewSQLiteStorage(dir, true, slog.Default())
	ro, err := reader.Open(ctx, domain.PartyTandem, "r1")
	req.NoError(err)
	defer ro.Close()
	req.NoError(ro.EnsureTable(ctx, todoSchema))
	req.NoError(ro.EnsureTable(ctx, contract.Schema{
		Name:    "notes",
		Key:     "id",
		Columns: []contract.Column{{Name: "id"}, {Name: "text"}},
	}))

	// Then todos are readable and notes come back empty
	rows, err := ro.SelectAll(ctx, "todos")
	req.NoError(err)
	req.Len(rows, 1)
	rows, err = ro.SelectAll(ctx, "notes")
	req.NoError(err)
	req.Empty(rows)
}

func TestNewStorage_Unknown_Driver(t *testing.T) {
	_, err := NewStorage(Options{Driver: "postgres"}, slog.Default())
	require.ErrorIs(t, err, errors.ErrUnknownDriver)
}

func TestBolt_ReadOnly_Reads_Rows_And_Missing_Tables(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tandem.bolt")

	// Given a file holding one todo
	writer, err := OpenBoltStorage(path, false, slog.Default())
	req.NoError(err)
	table := openTodos(t, writer, "r1")
	req.NoError(table.InsertOrUpdate(ctx, "todos", "a", contract.Row{"content": "a", "position": int64(7)}))
	req.NoError(writer.Close())

	// When it is opened read-only
	reader, err := NewStorage(Options{Driver: DriverBolt, BoltPath: path, ReadOnly: true}, slog.Default())
	req.NoError(err)
	defer reader.Close()
	ro, err := reader.Open(ctx, domain.PartyTandem, "r1")
	req.NoError(err)
	req.NoError(ro.EnsureTable(ctx, todoSchema))
	req.NoError(ro.EnsureTable(ctx, contract.Schema{
		Name:    "notes",
		Key:     "id",
		Columns: []contract.Column{{Name: "id"}, {Name: "text"}},
	}))

	// Then the todo decodes with its column types and notes come back empty
	rows, err := ro.SelectAll(ctx, "todos")
	req.NoError(err)
	req.Equal([]contract.Row{{"id": "a", "content": "a", "completed": false, "position": int64(7)}}, rows)
	rows, err = ro.SelectAll(ctx, "notes")
	req.NoError(err)
	req.Empty(rows)
}
