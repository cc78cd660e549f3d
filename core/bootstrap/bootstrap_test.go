package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/storebot/core/config"
)

func TestRunSkipsDatabaseWhenDisabled(t *testing.T) {
	var connected, migrated bool
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
		Migrate: func(coreconfig.DatabaseConfig) error {
			migrated = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, connected)
	assert.False(t, migrated)
}

func TestRunStopsOnMigrationFailure(t *testing.T) {
	cfg := &coreconfig.Config{Database: coreconfig.DatabaseConfig{Enabled: true}}
	boom := errors.New("boom")
	_, err := Run(Options{
		Config:     cfg,
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			t.Fatal("connect must not run after failed migration")
			return nil, nil
		},
		Migrate: func(coreconfig.DatabaseConfig) error { return boom },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}
