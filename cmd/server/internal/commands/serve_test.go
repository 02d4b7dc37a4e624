package commands

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/store"
	memorystore "github.com/wolfeidau/fpconsole/internal/store/memory"
	redisstore "github.com/wolfeidau/fpconsole/internal/store/redis"
)

func TestServeCmd_OpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cmd := &ServeCmd{StoreType: "memory"}
		st, closeStore, err := cmd.openStore(ctx)
		require.NoError(t, err)
		defer closeStore()
		assert.IsType(t, &memorystore.Store{}, st)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)

		cmd := &ServeCmd{
			StoreType:  "redis",
			RedisStore: RedisStoreFlags{URL: "redis://" + mr.Addr(), Prefix: "test:"},
		}
		st, closeStore, err := cmd.openStore(ctx)
		require.NoError(t, err)
		defer closeStore()
		assert.IsType(t, &redisstore.Store{}, st)

		require.NoError(t, st.Put(ctx, "ws/1/user", []byte(`{"username":"alice"}`)))
		assert.True(t, mr.Exists("test:ws/1/user"))

		_, err = st.Get(ctx, "ws/2/user")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("redis without url", func(t *testing.T) {
		cmd := &ServeCmd{StoreType: "redis"}
		_, _, err := cmd.openStore(ctx)
		require.Error(t, err)
	})

	t.Run("postgres without connection string", func(t *testing.T) {
		cmd := &ServeCmd{StoreType: "postgres"}
		_, _, err := cmd.openStore(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection string is required")
	})
}

func TestServeCmd_ListenRequiresCertAndKey(t *testing.T) {
	cmd := &ServeCmd{Listen: "127.0.0.1:0", Cert: "cert.pem"}
	err := cmd.listen(&http.Server{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both TLS certificate and key")

	cmd = &ServeCmd{Listen: "127.0.0.1:0", Cert: "missing-cert.pem", Key: "missing-key.pem"}
	err = cmd.listen(&http.Server{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS certificate not found")
}

func TestBackendFlags_Config(t *testing.T) {
	flags := BackendFlags{URL: "http://backend:8000", BasePath: "/api", Retries: 2}
	cfg := flags.config()
	assert.Equal(t, "http://backend:8000", cfg.BaseURL)
	assert.Equal(t, 2, cfg.MaxRetries)

	flags.Retries = 0
	assert.Equal(t, apiclient.NoRetries, flags.config().MaxRetries)
}
