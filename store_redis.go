package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"cyberherd-messaging/internal/templates"
)

// RedisStore implements Store on Redis. Templates live in one hash per
// (owner, category) with the template key as the field; a per-owner set
// tracks category names so listing does not need SCAN.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
// URL format: redis://[:password@]host:port/db
func NewRedisStore(redisURL string, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Connection pool settings
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) tplHash(owner, category string) string {
	return s.prefix + "tpl:" + owner + ":" + category
}

func (s *RedisStore) catsSet(owner string) string {
	return s.prefix + "cats:" + owner
}

func (s *RedisStore) settingsHash(owner string) string {
	return s.prefix + "settings:" + owner
}

func (s *RedisStore) Get(ctx context.Context, owner, category, key string) (*templates.Template, error) {
	content, err := s.client.HGet(ctx, s.tplHash(owner, category), key).Result()
	if err == redis.Nil {
		return nil, templates.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &templates.Template{Owner: owner, Category: category, Key: key, Content: content}, nil
}

func (s *RedisStore) List(ctx context.Context, owner, category string) ([]templates.Template, error) {
	cats := []string{category}
	if category == "" {
		all, err := s.Categories(ctx, owner)
		if err != nil {
			return nil, err
		}
		cats = all
	}

	var out []templates.Template
	for _, cat := range cats {
		fields, err := s.client.HGetAll(ctx, s.tplHash(owner, cat)).Result()
		if err != nil {
			return nil, err
		}
		for key, content := range fields {
			out = append(out, templates.Template{Owner: owner, Category: cat, Key: key, Content: content})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *RedisStore) Categories(ctx context.Context, owner string) ([]string, error) {
	cats, err := s.client.SMembers(ctx, s.catsSet(owner)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(cats)
	return cats, nil
}

func (s *RedisStore) Put(ctx context.Context, tpl templates.Template) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.tplHash(tpl.Owner, tpl.Category), tpl.Key, tpl.Content)
	pipe.SAdd(ctx, s.catsSet(tpl.Owner), tpl.Category)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, owner, category, key string) error {
	removed, err := s.client.HDel(ctx, s.tplHash(owner, category), key).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return templates.ErrTemplateNotFound
	}
	// Drop the category marker when the hash emptied
	remaining, err := s.client.HLen(ctx, s.tplHash(owner, category)).Result()
	if err == nil && remaining == 0 {
		s.client.SRem(ctx, s.catsSet(owner), category)
	}
	return nil
}

func (s *RedisStore) DeleteCategory(ctx context.Context, owner, category string) (int, error) {
	count, err := s.client.HLen(ctx, s.tplHash(owner, category)).Result()
	if err != nil {
		return 0, err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.tplHash(owner, category))
	pipe.SRem(ctx, s.catsSet(owner), category)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *RedisStore) RenameCategory(ctx context.Context, owner, oldName, newName string) (int, error) {
	fields, err := s.client.HGetAll(ctx, s.tplHash(owner, oldName)).Result()
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for key, content := range fields {
		pipe.HSet(ctx, s.tplHash(owner, newName), key, content)
	}
	pipe.Del(ctx, s.tplHash(owner, oldName))
	pipe.SRem(ctx, s.catsSet(owner), oldName)
	pipe.SAdd(ctx, s.catsSet(owner), newName)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(fields), nil
}

func (s *RedisStore) GetSetting(ctx context.Context, owner, name string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.settingsHash(owner), name).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetSetting(ctx context.Context, owner, name, value string) error {
	return s.client.HSet(ctx, s.settingsHash(owner), name, value).Err()
}

func (s *RedisStore) DeleteSetting(ctx context.Context, owner, name string) error {
	return s.client.HDel(ctx, s.settingsHash(owner), name).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
