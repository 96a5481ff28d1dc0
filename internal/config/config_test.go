package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  jwt_secret: s3cret
matching:
  policy: deduct_capacity
notification:
  dev_mode: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "deduct_capacity", cfg.Matching.Policy)
	assert.Equal(t, 24*time.Hour, cfg.Matching.ConfirmationWindow)
	assert.Equal(t, "ticker", cfg.Scheduler.Mode)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ExpireSweep.Interval)
	assert.Equal(t, "0 9 * * MON", cfg.Scheduler.PollHosts.Cron)
	assert.Equal(t, 10*time.Second, cfg.Notification.SendTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  jwt_secret: from-file
notification:
  dev_mode: true
`)
	t.Setenv("HOSTMATCH_AUTH_JWT_SECRET", "from-env")
	t.Setenv("HOSTMATCH_SERVER_PORT", "9090")
	t.Setenv("HOSTMATCH_MATCHING_CONFIRMATION_WINDOW", "36h")
	t.Setenv("HOSTMATCH_SCHEDULER_MODE", "off")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 36*time.Hour, cfg.Matching.ConfirmationWindow)
	assert.Equal(t, "off", cfg.Scheduler.Mode)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"missing secret":          "database:\n  driver: memory\nnotification:\n  dev_mode: true\n",
		"postgres without url":    "auth:\n  jwt_secret: x\nnotification:\n  dev_mode: true\n",
		"bad scheduler":           "auth:\n  jwt_secret: x\ndatabase:\n  driver: memory\nscheduler:\n  mode: cron\nnotification:\n  dev_mode: true\n",
		"no whatsapp outside dev": "auth:\n  jwt_secret: x\ndatabase:\n  driver: memory\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
