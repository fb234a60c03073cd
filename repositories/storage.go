package repositories

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"tandem/contract"
	"tandem/errors"
)

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverBolt   = "bolt"
)

type Options struct {
	Driver     string
	SQLiteDir  string
	BadgerPath string
	BoltPath   string
	ReadOnly   bool
	Debug      bool
}

// NewStorage opens the backend named by opts.Driver.
// The caller owns the returned storage and must Close it.
func NewStorage(opts Options, log *slog.Logger) (contract.Storage, error) {
	switch opts.Driver {
	case DriverSQLite:
		return NewSQLiteStorage(opts.SQLiteDir, opts.ReadOnly, log), nil
	case DriverBadger:
		db, err := badger.Open(badgerOptions(opts))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		return NewBadgerStorage(db, log), nil
	case DriverBolt:
		return OpenBoltStorage(opts.BoltPath, opts.ReadOnly, log)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownDriver, opts.Driver)
	}
}

func badgerOptions(opts Options) badger.Options {
	options := badger.DefaultOptions(opts.BadgerPath).
		WithReadOnly(opts.ReadOnly)
	if opts.Debug {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
