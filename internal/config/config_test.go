package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tendril.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
log_level: debug
log_format: json
lock_ttl: 5s
http_addr: ":9090"
globals:
  region: eu
definitions:
  - order.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 5*time.Second, cfg.Session().LockTTL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "eu", cfg.Globals["region"])
	assert.Equal(t, []string{"order.yaml"}, cfg.Definitions)
	assert.NotNil(t, cfg.Logger())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "http_addr: \":1234\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, ":1234", cfg.HTTPAddr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = Load(writeFile(t, "log_level: loud\n"))
	assert.ErrorContains(t, err, "unknown log level")

	_, err = Load(writeFile(t, "redis:\n  db: 2\n"))
	assert.ErrorContains(t, err, "redis.addr")

	_, err = Load(writeFile(t, "log_level: [\n"))
	assert.Error(t, err)
}

func TestNewEnvironment_Memory(t *testing.T) {
	cfg := Default()
	cfg.Globals = map[string]any{"k": "v"}

	env, err := cfg.NewEnvironment(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, env.Store)
	assert.Nil(t, env.Locker)
	assert.Equal(t, "v", env.Globals["k"])
}

func TestNewEnvironment_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Default()
	cfg.Redis = &RedisConfig{Addr: mr.Addr(), Prefix: "app:"}

	env, err := cfg.NewEnvironment(context.Background())
	require.NoError(t, err)
	store, ok := env.Store.(*redis.Store)
	require.True(t, ok)
	defer store.Close()
	assert.IsType(t, &redis.Locker{}, env.Locker)

	unlock, err := env.Locker.Lock(context.Background(), "process:1", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("app:lock:process:1"))
	require.NoError(t, unlock(context.Background()))
}

func TestNewEnvironment_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := Default()
	cfg.Redis = &RedisConfig{Addr: addr}
	_, err := cfg.NewEnvironment(context.Background())
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestNewEnvironment_File(t *testing.T) {
	cfg := Default()
	cfg.StorePath = t.TempDir()

	env, err := cfg.NewEnvironment(context.Background())
	require.NoError(t, err)
	store, ok := env.Store.(*file.Store)
	require.True(t, ok)
	assert.Equal(t, cfg.StorePath, store.BasePath)
}

func TestNewEnvironment_EncryptedAndMasked(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	path := writeFile(t, "mask_variables: [\"password\"]\nencryption:\n  key: "+key+"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	env, err := cfg.NewEnvironment(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	snap := &domain.ProcessSnapshot{ID: 1, State: domain.ProcessActive, Variables: map[string]any{"password": "hunter2", "user": "ana"}}
	require.NoError(t, env.Store.Save(ctx, "1", snap))

	loaded, err := env.Store.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Variables["password"])
	assert.Equal(t, "ana", loaded.Variables["user"])
}

func TestLoad_InvalidStoreMiddleware(t *testing.T) {
	_, err := Load(writeFile(t, "encryption:\n  key: c2hvcnQ=\n"))
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = Load(writeFile(t, "encryption:\n  key: \"%%%\"\n"))
	assert.ErrorContains(t, err, "encryption.key")

	_, err = Load(writeFile(t, "mask_variables: [\"(\"]\n"))
	assert.ErrorContains(t, err, "invalid mask pattern")
}
