package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists each thread as a Redis list of JSON messages plus a JSON
// context string. Every write refreshes the TTL of both keys.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) messagesKey(threadID string) string {
	return fmt.Sprintf("conversation:%s:messages", threadID)
}

func (r *RedisStore) contextKey(threadID string) string {
	return fmt.Sprintf("conversation:%s:context", threadID)
}

// seedThread pushes the system message only into a missing list and returns
// the whole list, so concurrent first requests create a thread once.
var seedThread = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	redis.call("RPUSH", KEYS[1], ARGV[1])
	if tonumber(ARGV[2]) > 0 then
		redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
end
return redis.call("LRANGE", KEYS[1], 0, -1)
`)

func (r *RedisStore) GetOrCreate(ctx context.Context, threadID string, system model.Message) (*model.Thread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}
	key := r.messagesKey(threadID)

	seed, err := json.Marshal(system)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	rows, err := seedThread.Run(ctx, r.rdb, []string{key}, seed, r.ttl.Milliseconds()).StringSlice()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]model.Message, 0, len(rows))
	for i, s := range rows {
		var m model.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}

	tc, err := r.loadContext(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &model.Thread{ID: threadID, Messages: msgs, Context: tc}, nil
}

func (r *RedisStore) Append(ctx context.Context, threadID string, message model.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	return r.push(ctx, threadID, message)
}

func (r *RedisStore) ReplaceHistory(ctx context.Context, threadID string, system model.Message, history []model.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	key := r.messagesKey(threadID)

	values := make([]any, 0, len(history)+1)
	for _, m := range append([]model.Message{system}, history...) {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, b)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to replace conversation history")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) SaveContext(ctx context.Context, threadID string, tc model.ThreadContext) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	key := r.contextKey(threadID)

	b, err := json.Marshal(tc)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save thread context")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) push(ctx context.Context, threadID string, message model.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.messagesKey(threadID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
		}
		r.rdb.Expire(ctx, r.contextKey(threadID), r.ttl)
	}
	return nil
}

func (r *RedisStore) loadContext(ctx context.Context, threadID string) (model.ThreadContext, error) {
	var tc model.ThreadContext
	key := r.contextKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tc, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load thread context")
		return tc, errx.WrapRedis(err)
	}
	if err := json.Unmarshal(raw, &tc); err != nil {
		return tc, fmt.Errorf("unmarshal context: %w", err)
	}
	return tc, nil
}

var _ model.ConversationStore = (*RedisStore)(nil)
