package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cognichat/internal/telemetry"
	"cognichat/models"

	"github.com/redis/go-redis/v9"
)

const transcriptPrefix = "transcript:"

// RedisStore keeps each transcript in a Redis list. Every write refreshes
// the key's TTL, so idle transcripts expire on their own.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *telemetry.Metrics
}

func NewRedisStore(client *redis.Client, ttl time.Duration, metrics *telemetry.Metrics) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, metrics: metrics}
}

func transcriptKey(sessionID string) string {
	return transcriptPrefix + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, entry models.TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript entry: %w", err)
	}

	key := transcriptKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	s.metrics.RecordTranscriptOperation("append", "redis", err == nil)
	if err != nil {
		return fmt.Errorf("failed to append transcript entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Entries(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error) {
	raw, err := s.client.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	s.metrics.RecordTranscriptOperation("entries", "redis", err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	entries := make([]models.TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.Delete(ctx, sessionID)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	err := s.client.Del(ctx, transcriptKey(sessionID)).Err()
	s.metrics.RecordTranscriptOperation("delete", "redis", err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
