package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test",
			Password: "test",
			Database: "test_db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Paypack: PaypackConfig{
			BaseURL:        "https://payments.paypack.rw/api",
			ClientID:       "client-id",
			ClientSecret:   "client-secret",
			WebhookSecret:  "webhook-secret",
			RequestTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_MissingPaypackCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing client id", func(c *Config) { c.Paypack.ClientID = "" }, "paypack.client_id"},
		{"missing client secret", func(c *Config) { c.Paypack.ClientSecret = "" }, "paypack.client_secret"},
		{"missing webhook secret", func(c *Config) { c.Paypack.WebhookSecret = "" }, "paypack.webhook_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Paypack.ClientID = ""
	cfg.Paypack.WebhookSecret = ""
	cfg.Database.Host = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "paypack.client_id")
	assert.Contains(t, err.Error(), "paypack.webhook_secret")
	assert.Contains(t, err.Error(), "database.host")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "orders",
		Password: "secret",
		Database: "orders",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5432 user=orders password=secret dbname=orders sslmode=require",
		cfg.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	cfg := &RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}
