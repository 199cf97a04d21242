// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/papercomputeco/hrdesk/pkg/vector"
	"github.com/papercomputeco/hrdesk/pkg/vector/chroma"
	"github.com/papercomputeco/hrdesk/pkg/vector/inmemory"
	"github.com/papercomputeco/hrdesk/pkg/vector/pgvector"
	"github.com/papercomputeco/hrdesk/pkg/vector/qdrant"
	"github.com/papercomputeco/hrdesk/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "inmemory", "sqlite", "chroma", "qdrant" or "pgvector".
	ProviderType string

	// TargetURL is the chroma URL, the qdrant host:port, or the pgvector DSN.
	TargetURL string

	// SQLitePath is the database file for the sqlite provider.
	SQLitePath string

	// Collection names the chroma or qdrant collection, or the pgvector table.
	Collection string

	// APIKey authenticates against qdrant.
	APIKey string

	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "inmemory", "memory":
		return inmemory.NewDriver(o.Dimensions, o.Logger), nil
	case "sqlite", "sqlitevec":
		d, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
		}, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite-vec index: %w", err)
		}
		return d, nil
	case "chroma":
		d, err := chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating chroma index: %w", err)
		}
		return d, nil
	case "qdrant":
		host, port, err := splitHostPort(o.TargetURL, qdrant.DefaultPort)
		if err != nil {
			return nil, err
		}
		d, err := qdrant.NewDriver(ctx, qdrant.Config{
			Host:           host,
			Port:           port,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant index: %w", err)
		}
		return d, nil
	case "pgvector":
		d, err := pgvector.NewDriver(ctx, pgvector.Config{
			DSN:        o.TargetURL,
			Table:      o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating pgvector index: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

func splitHostPort(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("qdrant target is required")
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port given
		return target, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}
