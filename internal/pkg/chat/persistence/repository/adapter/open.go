package adapter

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"collabhub-realtime/internal/config"
	"collabhub-realtime/internal/infrastructure/database"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// Store is a ChatRepository that owns its connections.
type Store interface {
	repository.ChatRepository
	Migrate(ctx context.Context) error
	Close() error
}

type pgStore struct {
	*PgChatRepository
}

func (s pgStore) Close() error {
	s.pool.Close()
	return nil
}

// Open connects the store selected by the config carried in ctx.
func Open(ctx context.Context) (Store, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("store: no config in context")
	}
	switch cfg.StoreType {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DBURL, database.WithApplicationName("collabhub-realtime"))
		if err != nil {
			return nil, err
		}
		return pgStore{NewPgChatRepository(pool)}, nil
	case config.StoreSQLite:
		repo, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("opened sqlite store", "path", cfg.SQLitePath)
		return repo, nil
	default:
		return nil, fmt.Errorf("store: unknown type %q", cfg.StoreType)
	}
}
