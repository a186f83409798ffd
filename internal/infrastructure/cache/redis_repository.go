package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
)

// GlobalStateKey holds the latest committed global state
const GlobalStateKey = "orderflow:global"

// RedisRepository implements the AccountCache interface using Redis as the backend
// It keeps the latest committed view of every account for fast external reads
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository connects to Redis. A zero ttl keeps entries forever.
func NewRedisRepository(addr, password string, db int, ttl time.Duration) *RedisRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{client: client, ttl: ttl}
}

// Ensure RedisRepository implements the AccountCache interface
var _ repository.AccountCache = (*RedisRepository)(nil)

// AccountKey is the key holding the latest committed view of owner's account
func AccountKey(owner string) string {
	return fmt.Sprintf("orderflow:account:%s", owner)
}

// Ping checks the connection
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) SaveAccount(ctx context.Context, account *model.UserAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return r.client.Set(ctx, AccountKey(account.Owner), data, r.ttl).Err()
}

func (r *RedisRepository) SaveGlobalState(ctx context.Context, global *model.GlobalState) error {
	data, err := json.Marshal(global)
	if err != nil {
		return fmt.Errorf("failed to marshal global state: %w", err)
	}
	return r.client.Set(ctx, GlobalStateKey, data, r.ttl).Err()
}
