// Package infra picks a Record Store backend from a connection string.
package infra

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dvloznov/budget-tracker/internal/infra/mongo"
	"github.com/dvloznov/budget-tracker/internal/infra/postgres"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/rs/zerolog"
)

// OpenStore connects to the backend named by the scheme of uri:
// mongodb and mongodb+srv use MongoDB, postgres and postgresql use Postgres,
// and memory keeps everything in process.
func OpenStore(ctx context.Context, uri, database string, log zerolog.Logger) (store.Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("OpenStore: parse uri: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	log.Info().Str("backend", scheme).Str("host", u.Host).Msg("Opening record store")

	switch scheme {
	case "mongodb", "mongodb+srv":
		s, err := mongo.Open(ctx, uri, database, log)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	case "postgres", "postgresql":
		s, err := postgres.Open(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("OpenStore: unsupported scheme %q", u.Scheme)
	}
}
