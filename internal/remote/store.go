// Package remote keeps the shared display state in Redis: counter snapshots,
// the calls collection and display settings.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidPath = errors.New("path must be <document> or <document>/<field>")
	ErrNotObject   = errors.New("document value must be a JSON object")
)

// Store is a small JSON document store addressed by path.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, bool, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, partial map[string]any) error
	Delete(ctx context.Context, path string) error
}

var _ Store = (*RedisStore)(nil)

// RedisStore keeps every document in a Redis hash, one JSON value per field.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) split(path string) (key, field string, err error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return s.prefix + parts[0], "", nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return s.prefix + parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
}

func (s *RedisStore) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	key, field, err := s.split(path)
	if err != nil {
		return nil, false, err
	}

	if field != "" {
		val, err := s.redis.HGet(ctx, key, field).Result()
		if err == redis.Nil {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("s.redis.HGet(%v, %v): %w", key, field, err)
		}
		return json.RawMessage(val), true, nil
	}

	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("s.redis.HGetAll(%v): %w", key, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	doc := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		doc[k] = json.RawMessage(v)
	}
	// map keys marshal sorted, so equal documents serialise identically
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode document %v: %w", key, err)
	}
	return raw, true, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	key, field, err := s.split(path)
	if err != nil {
		return err
	}

	if field != "" {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %v: %w", path, err)
		}
		if err := s.redis.HSet(ctx, key, field, raw).Err(); err != nil {
			return fmt.Errorf("s.redis.HSet(%v, %v): %w", key, field, err)
		}
		return nil
	}

	fields, err := objectFields(value)
	if err != nil {
		return err
	}

	// Replace the whole document atomically
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set document %v: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, partial map[string]any) error {
	key, field, err := s.split(path)
	if err != nil {
		return err
	}
	if field != "" {
		return fmt.Errorf("%w: update needs a document path, got %q", ErrInvalidPath, path)
	}
	if len(partial) == 0 {
		return nil
	}

	fields, err := objectFields(partial)
	if err != nil {
		return err
	}
	if err := s.redis.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("s.redis.HSet(%v): %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	key, field, err := s.split(path)
	if err != nil {
		return err
	}

	if field != "" {
		err = s.redis.HDel(ctx, key, field).Err()
	} else {
		err = s.redis.Del(ctx, key).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to delete %v: %w", path, err)
	}
	return nil
}

// objectFields encodes value, which must serialise to a JSON object, into
// one JSON string per top level field.
func objectFields(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, ErrNotObject
	}

	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		fields[k] = string(v)
	}
	return fields, nil
}
