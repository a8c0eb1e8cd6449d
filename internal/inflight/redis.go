package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/rs/zerolog"
)

const keyPrefix = "marketplace:inflight:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares leases between server replicas.
type Redis struct {
	client rueidis.Client
	log    zerolog.Logger
}

type RedisOptions struct {
	Address  string
	Username string
	Password string
}

func NewRedis(ctx context.Context, opts RedisOptions, log zerolog.Logger) (*Redis, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{opts.Address},
		Username:     opts.Username,
		Password:     opts.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", opts.Address, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Address, err)
	}
	return NewRedisClient(client, log), nil
}

// NewRedisClient wraps an already connected client; Close closes it.
func NewRedisClient(client rueidis.Client, log zerolog.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()
	cmd := r.client.B().Set().Key(k).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Exec(ctx, r.client, []string{k}, []string{token}).Error(); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("release inflight lease")
		}
	}, nil
}

func (r *Redis) Close() {
	r.client.Close()
}
