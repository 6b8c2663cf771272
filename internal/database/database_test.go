package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "localhost", Port: "5432"}.withDefaults()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 5, cfg.ConnMaxLifetime)
	assert.Equal(t, 2, cfg.ConnMaxIdleTime)
}

func TestConfigIdleNeverExceedsOpen(t *testing.T) {
	cfg := Config{MaxOpenConns: 4, MaxIdleConns: 8}.withDefaults()
	assert.Equal(t, 4, cfg.MaxIdleConns)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db",
		Port:     "5433",
		User:     "alloc",
		Password: "secret",
		DBName:   "minutes",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5433 user=alloc password=secret dbname=minutes sslmode=disable", cfg.DSN())
}
