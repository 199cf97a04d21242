package storageutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/hrdesk/pkg/storage"
	"github.com/papercomputeco/hrdesk/pkg/storage/inmemory"
	"github.com/papercomputeco/hrdesk/pkg/storage/postgres"
	"github.com/papercomputeco/hrdesk/pkg/storage/sqlite"
)

type NewStorageDriverOpts struct {
	// SQLitePath selects the SQLite driver when set.
	SQLitePath string

	// PostgresDSN selects the PostgreSQL driver when set. It wins over SQLitePath.
	PostgresDSN string
}

// NewStorageDriver picks a document registry backend. With neither option set
// an in-memory registry is returned.
func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, error) {
	switch {
	case o.PostgresDSN != "":
		d, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres storage: %w", err)
		}
		return d, nil
	case o.SQLitePath != "":
		d, err := sqlite.NewSQLiteDriver(o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite storage: %w", err)
		}
		return d, nil
	default:
		return inmemory.NewDriver(), nil
	}
}
