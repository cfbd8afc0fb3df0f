package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/storage"
)

// NewStore opens the vector index. It returns a nil Storage when the vector
// stage is disabled, and closes the database on stop.
func NewStore(lc fx.Lifecycle, settings *Settings) (storage.Storage, error) {
	if settings.VectorDisabled {
		slog.Info("vector index disabled")
		return nil, nil
	}
	if settings.DBPath == "" {
		return nil, fmt.Errorf("database path must be specified")
	}

	store, err := storage.NewSQLiteStorage(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// NewEmbedder creates the query and ingest embedder, or nil when the vector
// stage is disabled
func NewEmbedder(lc fx.Lifecycle, settings *Settings) (embedder.Embedder, error) {
	if settings.VectorDisabled {
		return nil, nil
	}
	emb, err := embedder.New(settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return emb.Close()
		},
	})
	slog.Debug("embedder ready", "provider", emb.Provider(), "model", emb.Model())
	return emb, nil
}

// StorageModule provides the vector index and its embedder
var StorageModule = fx.Module("storage",
	fx.Provide(
		NewStore,
		NewEmbedder,
	),
)
