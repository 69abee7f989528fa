package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lyric-assistant-core/server/internal/assistant/messages"
	"github.com/lyric-assistant-core/server/internal/assistant/model"
	errx "github.com/lyric-assistant-core/server/internal/core/error"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

// ListStore is the subset of redis.Cmdable the repository needs.
type ListStore interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LSet(ctx context.Context, key string, index int64, value any) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisMessageRepository struct {
	rdb ListStore
	ttl time.Duration
}

func NewRedisMessageRepository(rdb ListStore, ttl time.Duration) *RedisMessageRepository {
	return &RedisMessageRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisMessageRepository) sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

func (r *RedisMessageRepository) AddMessage(ctx context.Context, sessionID string, message *model.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.sessionKey(sessionID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

// ReplaceMessage overwrites the entry at index, used when a pending message settles.
func (r *RedisMessageRepository) ReplaceMessage(ctx context.Context, sessionID string, index int, message *model.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.sessionKey(sessionID)

	if err := r.rdb.LSet(ctx, key, int64(index), b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Int("index", index).Msg("failed to replace message in redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

func (r *RedisMessageRepository) LoadHistory(ctx context.Context, sessionID string) ([]*model.Message, error) {
	key := r.sessionKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*model.Message{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load message history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*model.Message, 0, len(rows))
	for i, s := range rows {
		var m model.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

func (r *RedisMessageRepository) ClearHistory(ctx context.Context, sessionID string) error {
	key := r.sessionKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete message history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// touch extends the session TTL on every write.
func (r *RedisMessageRepository) touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	ok, err := r.rdb.Expire(ctx, key, r.ttl).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
		return errx.WrapRedis(err)
	}
	if !ok {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on session key")
	}
	return nil
}

var _ messages.Repository = (*RedisMessageRepository)(nil)
