package db

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name   string
		config RedisConfig
		check  func(t *testing.T, cfg RedisConfig)
	}{
		{
			name:   "empty config uses defaults",
			config: RedisConfig{},
			check: func(t *testing.T, cfg RedisConfig) {
				assert.Equal(t, "localhost:6379", cfg.Addr())
				assert.Equal(t, 10, cfg.PoolSize)
				assert.Equal(t, 3, cfg.MaxRetries)
				assert.Equal(t, 5*time.Second, cfg.DialTimeout)
			},
		},
		{
			name: "explicit values are kept",
			config: RedisConfig{
				Host:        "redis.example.com",
				Port:        6380,
				Password:    "secret",
				DB:          1,
				PoolSize:    20,
				MaxRetries:  5,
				ReadTimeout: time.Second,
			},
			check: func(t *testing.T, cfg RedisConfig) {
				assert.Equal(t, "redis.example.com:6380", cfg.Addr())
				assert.Equal(t, 20, cfg.PoolSize)
				assert.Equal(t, 5, cfg.MaxRetries)
				assert.Equal(t, time.Second, cfg.ReadTimeout)
				assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewRedisClient(tt.config)
			defer client.Close()

			require.NotNil(t, client.GetClient())
			tt.check(t, client.Config())
		})
	}
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client := NewRedisClient(RedisConfig{Host: host, Port: port})
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))
	assert.NotNil(t, client.PoolStats())

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
