package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 30*24*time.Hour, cfg.Forms.RestoreWindow.Std())
	assert.False(t, cfg.Provider.Enabled())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  cors_origins: ["https://app.example.com"]
store:
  backend: redis
  redis:
    addr: "redis:6379"
    lock: true
    lock_ttl: 10s
forms:
  restore_window: 48h
autosave:
  debounce: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "arbor:", cfg.Store.Redis.Prefix, "unset keys keep their default")
	assert.True(t, cfg.Store.Redis.Lock)
	assert.Equal(t, 10*time.Second, cfg.Store.Redis.LockTTL.Std())
	assert.Equal(t, 48*time.Hour, cfg.Forms.RestoreWindow.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Autosave.Debounce.Std())
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "forms:\n  restore_window: soon\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ARBOR_STORE_BACKEND":          "postgres",
		"ARBOR_POSTGRES_DSN":           "postgres://localhost/arbor",
		"ARBOR_CORS_ORIGINS":           "https://a.example, https://b.example,",
		"ARBOR_RESTORE_WINDOW":         "1h",
		"ARBOR_AUTOSAVE_MAX_RETRIES":   "5",
		"ARBOR_VALIDATE_OPENAPI":       "true",
		"ARBOR_PROVIDER_RPS":           "2.5",
		"ARBOR_SCHEDULE_ORGANIZATIONS": "org-1,org-2",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/arbor", cfg.Store.Postgres.DSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Hour, cfg.Forms.RestoreWindow.Std())
	assert.Equal(t, 5, cfg.Autosave.MaxRetries)
	assert.True(t, cfg.Server.ValidateOpenAPI)
	assert.Equal(t, 2.5, cfg.Provider.RequestsPerSecond)
	assert.Equal(t, []string{"org-1", "org-2"}, cfg.Schedule.Organizations)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	env := map[string]string{
		"ARBOR_REDIS_DB":         "zero",
		"ARBOR_RESTORE_WINDOW":   "forever",
		"ARBOR_VALIDATE_OPENAPI": "maybe",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARBOR_REDIS_DB")
	assert.Contains(t, err.Error(), "ARBOR_RESTORE_WINDOW")
	assert.Contains(t, err.Error(), "ARBOR_VALIDATE_OPENAPI")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "cassandra"
	cfg.Log.Format = "xml"
	cfg.Provider.BaseURL = "https://acme.simprosuite.com"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
	assert.Contains(t, err.Error(), "xml")
	assert.Contains(t, err.Error(), "client_id")

	cfg = Default()
	cfg.Store.Backend = BackendPostgres
	assert.ErrorContains(t, cfg.Validate(), "dsn")
}

func TestLoad_Organizations(t *testing.T) {
	path := writeConfig(t, `
organizations:
  - id: org-a
    name: Salon
    timezone: Europe/Lisbon
    business_hours:
      monday:
        - {start: "09:00", end: "12:00"}
        - {start: "13:00", end: "18:00"}
    closed_dates: ["2026-12-25"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Organizations, 1)

	org := cfg.Organizations[0].Organization()
	assert.Equal(t, "org-a", org.ID)
	assert.Len(t, org.BusinessHours.For(time.Monday), 2)
	assert.True(t, org.IsClosed("2026-12-25"))
}

func TestValidate_Organizations(t *testing.T) {
	cfg := Default()
	cfg.Organizations = []OrganizationConfig{
		{Name: "no id"},
		{ID: "b", Timezone: "Mars/Olympus"},
		{ID: "c", BusinessHours: map[string][]domain.TimeRange{"monday": {{Start: "18:00", End: "09:00"}}}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organizations[0].id is required")
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
	assert.ErrorIs(t, err, domain.ErrInvalidBusinessHours)
}
