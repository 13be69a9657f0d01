package db

import (
	"context"
	"testing"

	"ton_miner/internal/config"
	"ton_miner/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStorageMemory(t *testing.T) {
	st, err := OpenStorage(&config.Config{StorageDriver: "memory"}, nil)
	require.NoError(t, err)
	defer st.Close()

	assert.IsType(t, &repository.MemoryRepository{}, st.Repo)
	assert.Empty(t, st.Checks)
	require.NoError(t, st.Repo.Put(context.Background(), "k", []byte(`{}`)))
}

func TestOpenStorageRejects(t *testing.T) {
	_, err := OpenStorage(&config.Config{StorageDriver: "sqlite"}, nil)
	assert.ErrorIs(t, err, repository.ErrUnknownDriver)

	_, err = OpenStorage(&config.Config{StorageDriver: "redis", RedisAddr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}

func TestConnectRedisEmptyAddr(t *testing.T) {
	assert.Nil(t, ConnectRedis("", "", 0))
}
