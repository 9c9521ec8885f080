package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "8080", cfg.HttpServer.Port)
	assert.Equal(t, 15*time.Second, cfg.HttpServer.TimeoutRead)
	assert.Equal(t, 60*time.Second, cfg.HttpServer.RequestTimeout)
	assert.Equal(t, "9090", cfg.GrpcServer.Port)
	assert.Equal(t, 10*time.Second, cfg.GrpcServer.HealthInterval)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.OpTimeout)
	assert.Equal(t, "ecommerce_db", cfg.Mongo.Database)
	assert.Equal(t, 4, cfg.Analytics.Workers)
	assert.Equal(t, 1024, cfg.Analytics.QueueSize)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "catalog")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DBNAME", "products")
	t.Setenv("ANALYTICS_WORKERS", "8")
	t.Setenv("HTTP_SERVER_PORT", "9000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Analytics.Workers)
	assert.Equal(t, "9000", cfg.HttpServer.Port)
	assert.Equal(t, "host=db port=5432 user=catalog password=secret dbname=products sslmode=disable", cfg.Postgres.DSN())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis"}, "unknown STORE_DRIVER"},
		{"postgres without credentials", map[string]string{"STORE_DRIVER": "postgres"}, "POSTGRES_HOST"},
		{"zero workers", map[string]string{"ANALYTICS_WORKERS": "0"}, "ANALYTICS_WORKERS"},
		{"zero queue", map[string]string{"ANALYTICS_QUEUE_SIZE": "0"}, "ANALYTICS_QUEUE_SIZE"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"bad duration", map[string]string{"STORE_OP_TIMEOUT": "soon"}, "failed to process configuration"},
		{"zero store timeout", map[string]string{"STORE_OP_TIMEOUT": "0s"}, "STORE_OP_TIMEOUT must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
