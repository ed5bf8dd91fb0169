package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.PermissionCache = (*Redis)(nil)

const keyPrefix = "peages:role-perms:"

// Redis shares the permission cache between instances / Partage le cache de permissions entre instances
// Redis failures degrade to cache misses so authorization falls back to the database.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps a connected client / Enveloppe un client connecté
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Connect opens client and checks it answers PING / Ouvre le client et vérifie qu'il répond à PING
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Get reads cached permissions / Lit les permissions en cache
func (r *Redis) Get(ctx context.Context, role string) ([]domain.Permission, bool) {
	raw, err := r.client.Get(ctx, keyPrefix+role).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis permission cache read failed", "role", role, "err", err)
		}
		return nil, false
	}
	var perms []domain.Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		slog.Warn("redis permission cache entry corrupted", "role", role, "err", err)
		return nil, false
	}
	return perms, true
}

// Set writes permissions with expiry / Écrit les permissions avec expiration
func (r *Redis) Set(ctx context.Context, role string, perms []domain.Permission, ttl time.Duration) {
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, keyPrefix+role, raw, ttl).Err(); err != nil {
		slog.Warn("redis permission cache write failed", "role", role, "err", err)
	}
}

// Invalidate deletes one role, or all cached roles when role is empty
// Invalidate supprime un rôle, ou tous les rôles en cache si role est vide
func (r *Redis) Invalidate(ctx context.Context, role string) {
	var err error
	if role != "" {
		err = r.client.Del(ctx, keyPrefix+role).Err()
	} else {
		iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		err = iter.Err()
		if err == nil && len(keys) > 0 {
			err = r.client.Del(ctx, keys...).Err()
		}
	}
	if err != nil {
		slog.Warn("redis permission cache invalidation failed", "role", role, "err", err)
	}
}

// Close releases the client / Libère le client
func (r *Redis) Close() error {
	return r.client.Close()
}
