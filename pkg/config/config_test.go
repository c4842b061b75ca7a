package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTest(t *testing.T) {
	require.NoError(t, InitTest())

	assert.Equal(t, "test-secret", GlobalConfig.JWT.Secret)
	assert.Equal(t, time.Hour, GlobalConfig.JWT.Expiration)
	assert.Equal(t, "channel", GlobalConfig.Messaging.Provider)
	assert.Equal(t, 2, GlobalConfig.WebSocket.MessageRetryCount)
	require.NotNil(t, GlobalConfig.File)
	assert.Equal(t, int64(1048576), GlobalConfig.File.MaxFileSize)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("MESSAGING_PROVIDER", "redis")

	require.NoError(t, InitTest())

	assert.Equal(t, "from-env", GlobalConfig.JWT.Secret)
	assert.Equal(t, "redis", GlobalConfig.Messaging.Provider)
}
