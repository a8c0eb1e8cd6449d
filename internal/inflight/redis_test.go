package inflight

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// setNX matches SET key <token> NX PX ttl and remembers the token.
func setNX(key string, ttl time.Duration, token *string) gomock.Matcher {
	return mock.MatchFn(func(cmd []string) bool {
		ok := len(cmd) == 6 && cmd[0] == "SET" && cmd[1] == keyPrefix+key &&
			cmd[3] == "NX" && cmd[4] == "PX" && cmd[5] == strconv.FormatInt(ttl.Milliseconds(), 10)
		if ok && token != nil {
			*token = cmd[2]
		}
		return ok
	}, "SET "+keyPrefix+key+" NX PX "+ttl.String())
}

// releaseCall matches the compare-and-delete script run for key and token.
func releaseCall(key string, token *string) gomock.Matcher {
	return mock.MatchFn(func(cmd []string) bool {
		if len(cmd) < 2 || (cmd[0] != "EVALSHA" && cmd[0] != "EVAL") {
			return false
		}
		return slices.Contains(cmd, keyPrefix+key) && cmd[len(cmd)-1] == *token
	}, "release "+keyPrefix+key)
}

func TestRedisAcquireAndRelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	g := NewRedisClient(client, zerolog.Nop())
	ctx := context.Background()

	var token string
	gomock.InOrder(
		client.EXPECT().Do(gomock.Any(), setNX("client-1", time.Minute, &token)).Return(mock.Result(mock.RedisString("OK"))),
		client.EXPECT().Do(gomock.Any(), setNX("client-1", time.Minute, nil)).Return(mock.Result(mock.RedisNil())),
		client.EXPECT().Do(gomock.Any(), releaseCall("client-1", &token)).Return(mock.Result(mock.RedisInt64(1))),
	)

	release, err := g.Acquire(ctx, "client-1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = g.Acquire(ctx, "client-1", time.Minute)
	require.ErrorIs(t, err, ErrBusy)

	release()
}

func TestRedisAcquireTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	g := NewRedisClient(client, zerolog.Nop())

	refused := errors.New("connection refused")
	client.EXPECT().Do(gomock.Any(), setNX("client-1", time.Minute, nil)).Return(mock.ErrorResult(refused))

	_, err := g.Acquire(context.Background(), "client-1", time.Minute)
	require.ErrorIs(t, err, refused)
	assert.NotErrorIs(t, err, ErrBusy)
}

func TestRedisTokensAreUnique(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	g := NewRedisClient(client, zerolog.Nop())

	var first, second string
	client.EXPECT().Do(gomock.Any(), setNX("a", time.Minute, &first)).Return(mock.Result(mock.RedisString("OK")))
	client.EXPECT().Do(gomock.Any(), setNX("b", time.Minute, &second)).Return(mock.Result(mock.RedisString("OK")))
	client.EXPECT().Do(gomock.Any(), releaseCall("a", &first)).Return(mock.Result(mock.RedisInt64(0)))
	client.EXPECT().Do(gomock.Any(), releaseCall("b", &second)).Return(mock.ErrorResult(errors.New("timeout")))

	releaseA, err := g.Acquire(context.Background(), "a", time.Minute)
	require.NoError(t, err)
	releaseB, err := g.Acquire(context.Background(), "b", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// A lease that already expired, or a failed release, is only logged.
	releaseA()
	releaseB()
}
