//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"tandem/domain"
)

type ColumnType int

const (
	TextColumn ColumnType = iota
	IntegerColumn
	BoolColumn
)

type Column struct {
	Name string
	Type ColumnType
}

// Schema describes one durable table. Key names the column holding the record identity.
type Schema struct {
	Name    string
	Key     string
	Columns []Column
}

// Row is the full field set of one record, keyed by column name.
type Row map[string]any

// Table is the durable backing store of one room.
// Rows come back from SelectAll in first-insert order; an update keeps a row's position.
type Table interface {
	EnsureTable(ctx context.Context, schema Schema) error
	InsertOrUpdate(ctx context.Context, table, key string, fields Row) error
	SelectAll(ctx context.Context, table string) ([]Row, error)
	DeleteByKey(ctx context.Context, table, key string) error
	Close() error
}

// Storage hands out one Table per room. A room's table is never shared with another room.
type Storage interface {
	Open(ctx context.Context, party domain.Party, room domain.RoomID) (Table, error)
	Close() error
}

// Sink is the outbound side of one live connection.
// Send never blocks: it returns ErrSlowSubscriber when the connection can't keep up
// and ErrSubscriberGone once it is closed.
type Sink interface {
	Send(payload []byte) error
	Close()
}

type IRegistry interface {
	Subscribe(connID string, sink Sink)
	Unsubscribe(connID string)
	SendToOne(connID string, payload []byte)
	Broadcast(payload []byte, exclude ...string)
	CloseAll()
	Len() int
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
