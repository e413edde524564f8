package session

import (
	"fmt"

	"cognichat/internal/config"
	"cognichat/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

// NewStore returns the transcript store selected by cfg.TranscriptStore.
// The redis store needs a connected client.
func NewStore(cfg *config.Config, client *redis.Client, metrics *telemetry.Metrics) (TranscriptStore, error) {
	switch cfg.TranscriptStore {
	case config.TranscriptStoreMemory, "":
		return NewMemoryStore(), nil
	case config.TranscriptStoreRedis:
		if client == nil {
			return nil, fmt.Errorf("redis transcript store requires a redis client")
		}
		return NewRedisStore(client, cfg.SessionTTL(), metrics), nil
	default:
		return nil, fmt.Errorf("unknown transcript store: %s", cfg.TranscriptStore)
	}
}
