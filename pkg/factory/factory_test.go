package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointflow/internal/config"
	"pointflow/pkg/logger"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: driver, SQLitePath: ":memory:"},
		Point:    config.PointConfig{LockTimeout: time.Second},
		Worker:   config.WorkerConfig{Count: 2, QueueSize: 4},
	}
}

func TestNewFactory(t *testing.T) {
	for _, driver := range []string{config.StorageMemory, config.StorageSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()

			f, err := NewFactory(ctx, testConfig(driver), logger.Nop())
			require.NoError(t, err)
			defer func() { assert.NoError(t, f.Close()) }()

			assert.Nil(t, f.GetCacheManager())
			assert.Len(t, f.HealthChecks(), 2)
			for _, check := range f.HealthChecks() {
				assert.NoError(t, check.Pinger.Ping(ctx), check.Name)
			}

			point, err := f.GetPointService().ChargeUserPoint(ctx, 1, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1000), point.Point)

			histories, err := f.GetPointHistoryRepository().FindByUserID(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, histories, 1)
			assert.Equal(t, 1, f.GetLockManager().Len())
		})
	}
}
