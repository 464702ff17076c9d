package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/taskloom/taskloom/core"
)

// RedisHistory is a History backed by Redis lists, one list per chat id.
// The pair append runs in a single pipeline so both messages land atomically;
// Redis's single-threaded command execution is the per-chat serialization.
type RedisHistory struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisHistoryOptions configure the Redis store.
type RedisHistoryOptions struct {
	// KeyPrefix namespaces history keys, default "taskloom:history:".
	KeyPrefix string
}

// NewRedisHistory wraps an existing Redis client.
func NewRedisHistory(client redis.UniversalClient, optFns ...func(o *RedisHistoryOptions)) *RedisHistory {
	opts := RedisHistoryOptions{KeyPrefix: "taskloom:history:"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisHistory{client: client, keyPrefix: opts.KeyPrefix}
}

func (h *RedisHistory) key(chatID string) string { return h.keyPrefix + chatID }

// Get loads and decodes the chat's transcript.
func (h *RedisHistory) Get(ctx context.Context, chatID string) ([]core.Message, error) {
	raw, err := h.client.LRange(ctx, h.key(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", chatID, err)
	}

	out := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var msg core.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decoding history entry for %s: %w", chatID, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// AppendTurn pushes both messages in one MULTI/EXEC pipeline.
func (h *RedisHistory) AppendTurn(ctx context.Context, chatID string, user, assistant core.Message) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user message: %w", err)
	}
	assistantJSON, err := json.Marshal(assistant)
	if err != nil {
		return fmt.Errorf("encoding assistant message: %w", err)
	}

	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, h.key(chatID), userJSON, assistantJSON)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending turn for %s: %w", chatID, err)
	}
	return nil
}

// Clear deletes the chat's transcript.
func (h *RedisHistory) Clear(ctx context.Context, chatID string) error {
	if err := h.client.Del(ctx, h.key(chatID)).Err(); err != nil {
		return fmt.Errorf("clearing history for %s: %w", chatID, err)
	}
	return nil
}
