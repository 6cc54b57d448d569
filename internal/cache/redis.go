package cache

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/goccy/go-json"
	redis "github.com/redis/go-redis/v9"
)

var _ PageCache = (*RedisPageCache)(nil)

// RedisOptions configures the redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type RedisPageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2, // Connection protocol
	})
}

func NewRedisPageCache(client *redis.Client, ttl time.Duration) *RedisPageCache {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisPageCache{client: client, ttl: ttl}
}

func (r *RedisPageCache) GetPage(ctx context.Context, path string) (*model.Page, error) {
	res := r.client.Get(ctx, pageKey(ctx, path))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	page := &model.Page{}
	if err = json.Unmarshal(buf, page); err != nil {
		return nil, err
	}

	return page, nil
}

func (r *RedisPageCache) SetPage(ctx context.Context, path string, page *model.Page) error {
	marshal, err := json.Marshal(page)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, pageKey(ctx, path), marshal, r.ttl).Err()
}

func (r *RedisPageCache) DeletePage(ctx context.Context, path string) error {
	return r.client.Del(ctx, pageKey(ctx, path)).Err()
}

func (r *RedisPageCache) GetFiles(ctx context.Context, path string) ([]*model.File, bool, error) {
	res := r.client.Get(ctx, filesKey(ctx, path))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, false, nil
		}
		return nil, false, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, false, err
	}

	files := make([]*model.File, 0)
	if err = json.Unmarshal(buf, &files); err != nil {
		return nil, false, err
	}

	return files, true, nil
}

func (r *RedisPageCache) SetFiles(ctx context.Context, path string, files []*model.File) error {
	marshal, err := json.Marshal(files)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, filesKey(ctx, path), marshal, r.ttl).Err()
}

func (r *RedisPageCache) DeleteFiles(ctx context.Context, path string) error {
	return r.client.Del(ctx, filesKey(ctx, path)).Err()
}
