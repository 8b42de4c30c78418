package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigSetup(t *testing.T) {
	cfg := (&Config{Port: "not-a-port"}).Setup()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "fintrack", cfg.DBName)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, "host=localhost port=5432 user=postgres dbname=fintrack password=postgres sslmode=disable", cfg.String())
	assert.NotContains(t, cfg.Redacted(), "password")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "3")

	cfg := NewConfigFromEnv().Setup()
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, "6543", cfg.Port)
	assert.Equal(t, 3, cfg.MaxOpenConns)
}
