package redis_wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg := &RedisConfig{
		ConnectionURL:      "redis://:secret@localhost:6380/2",
		PoolSize:           32,
		ReadTimeoutSeconds: 3,
	}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 32, opts.PoolSize)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)

	_, err = (&RedisConfig{ConnectionURL: "http://nope"}).Options()
	assert.Error(t, err)
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := InitRedis(context.Background(), &RedisConfig{ConnectionURL: "redis://" + addr})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	mr.Close()
	_, err = InitRedis(context.Background(), &RedisConfig{ConnectionURL: "redis://" + addr})
	assert.Error(t, err)
}
