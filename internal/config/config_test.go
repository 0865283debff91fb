package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ALLOCATION_ORDER_NUMBER_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Allocation.OrderNumberAttempts)
	assert.Equal(t, 50.0, cfg.Allocation.NearbyRadiusKm)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("NEARBY_DEFAULT_RADIUS_KM", "12.5")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 12.5, cfg.Allocation.NearbyRadiusKm)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("ALLOCATION_ORDER_NUMBER_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}
