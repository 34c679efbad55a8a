// Package store keeps room snapshots across restarts. Every Save replaces the
// whole stored set with the given records.
package store

import (
	"context"
	"fmt"

	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

type Store interface {
	Load(ctx context.Context) ([]snapshot.Record, error)
	Save(ctx context.Context, records []snapshot.Record) error
	Close() error
}

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open builds the store for driver. path is used by file and sqlite, dsn by postgres.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch driver {
	case DriverFile:
		return NewFile(path), nil
	case DriverSQLite:
		return NewSQLite(ctx, path)
	case DriverPostgres:
		return NewPostgres(ctx, dsn)
	case DriverNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// Nop keeps nothing.
type Nop struct{}

func (Nop) Load(context.Context) ([]snapshot.Record, error) { return nil, nil }
func (Nop) Save(context.Context, []snapshot.Record) error   { return nil }
func (Nop) Close() error                                    { return nil }
