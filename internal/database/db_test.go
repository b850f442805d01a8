package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/store-reservation/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		DBUser:            "app",
		DBPass:            "p@ss:word",
		DBHost:            "db.internal",
		DBPort:            "3307",
		DBName:            "reservations",
		DBMaxOpenConns:    7,
		DBMaxIdleConns:    3,
		DBConnMaxLifetime: 10 * time.Minute,
	}
}

func TestDSN(t *testing.T) {
	mc, err := mysql.ParseDSN(DSN(testConfig()))
	require.NoError(t, err)
	assert.Equal(t, "app", mc.User)
	assert.Equal(t, "p@ss:word", mc.Passwd)
	assert.Equal(t, "tcp", mc.Net)
	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.Equal(t, "reservations", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, time.UTC, mc.Loc)
}

func TestConnectAppliesPoolLimits(t *testing.T) {
	db, err := connect(testConfig())
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
