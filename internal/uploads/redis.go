package uploads

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// snapshotKey is the Redis hash holding one field per session id.
const snapshotKey = "upload_sessions"

// RedisStore persists snapshots in a Redis hash so restored sessions
// survive process restarts and are shared across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal upload session: %w", err)
	}
	return r.client.HSet(ctx, snapshotKey, sess.ID, data).Err()
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.HDel(ctx, snapshotKey, id).Err()
}

func (r *RedisStore) List(ctx context.Context) ([]Session, error) {
	fields, err := r.client.HGetAll(ctx, snapshotKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload sessions: %w", err)
	}

	out := make([]Session, 0, len(fields))
	for id, raw := range fields {
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			// Corrupt field, drop it rather than fail every restore.
			r.client.HDel(ctx, snapshotKey, id)
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
