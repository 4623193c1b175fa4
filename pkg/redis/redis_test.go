package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NureSalohubAndrii/carvision/pkg/config"
)

func TestRedisConfig_RedisAddr(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		expected string
	}{
		{
			name:     "default localhost",
			cfg:      config.RedisConfig{Host: "localhost", Port: "6379"},
			expected: "localhost:6379",
		},
		{
			name:     "custom host and port",
			cfg:      config.RedisConfig{Host: "redis.example.com", Port: "6380"},
			expected: "redis.example.com:6380",
		},
		{
			name:     "empty values",
			cfg:      config.RedisConfig{},
			expected: ":",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.RedisAddr())
		})
	}
}

func TestClient_SetWithExpiration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)

	mock.ExpectSet("session:abc", "payload", 5*time.Minute).SetVal("OK")

	err := client.SetWithExpiration(context.Background(), "session:abc", "payload", 5*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_GetString(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)

	mock.ExpectGet("session:abc").SetVal("payload")

	value, err := client.GetString(context.Background(), "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "payload", value)
}

func TestClient_GetString_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)

	mock.ExpectGet("missing").RedisNil()

	_, err := client.GetString(context.Background(), "missing")
	assert.ErrorIs(t, err, goredis.Nil)
}

func TestClient_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)

	mock.ExpectDel("a", "b").SetVal(2)

	err := client.Delete(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Exists(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)

	mock.ExpectExists("present").SetVal(1)
	mock.ExpectExists("absent").SetVal(0)

	found, err := client.Exists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = client.Exists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
}
