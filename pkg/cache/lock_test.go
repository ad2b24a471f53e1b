package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/pkg/config"
)

func TestRedisLockerWithoutClientAlwaysGrants(t *testing.T) {
	locker := NewRedisLocker(nil)
	release, err := locker.Acquire(context.Background(), "activity-lifecycle", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
	release()
}

func TestNewRedisDisabledReturnsNilClient(t *testing.T) {
	client, err := NewRedis(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}
