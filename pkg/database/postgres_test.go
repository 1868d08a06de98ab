package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/division-console/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "console", Password: "secret", Name: "audit", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=console password=secret dbname=audit sslmode=disable", dsn)
}
