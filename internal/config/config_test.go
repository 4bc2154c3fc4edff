package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Point.LockTimeout)
	assert.False(t, cfg.Point.RequireExistingUser)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5, cfg.Worker.Count)
	assert.Equal(t, 100, cfg.Worker.QueueSize)
}

func TestFromViper_Overrides(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]interface{}{
		"STORAGE_DRIVER":              "SQLite3",
		"LOCK_TIMEOUT":                "250ms",
		"POINT_REQUIRE_EXISTING_USER": "true",
		"REDIS_HOST":                  "cache",
		"REDIS_PORT":                  "6380",
	}))
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Point.LockTimeout)
	assert.True(t, cfg.Point.RequireExistingUser)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr())
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"unknown driver", map[string]interface{}{"STORAGE_DRIVER": "mongo"}},
		{"zero lock timeout", map[string]interface{}{"LOCK_TIMEOUT": "0s"}},
		{"no workers", map[string]interface{}{"WORKER_COUNT": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(newViper(tt.overrides))
			assert.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "point",
		Password: "secret",
		Name:     "points",
		SSLMode:  "disable",
	}.PostgresDSN()

	assert.Equal(t, "host=db port=5432 user=point password=secret dbname=points sslmode=disable", dsn)
}
