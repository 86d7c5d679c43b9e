package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfigFile marshals the given document to a temporary YAML file and
// returns its path.
func writeConfigFile(t *testing.T, doc map[string]interface{}) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func validConfigDoc() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":        8080,
			"environment": "test",
		},
		"database": map[string]interface{}{
			"postgres": map[string]interface{}{
				"host":     "localhost",
				"port":     5432,
				"database": "carrotwars",
				"user":     "carrotwars",
				"password": "secret",
				"ssl_mode": "disable",
			},
			"redis": map[string]interface{}{
				"host": "localhost",
				"port": 6379,
			},
		},
		"auth": map[string]interface{}{
			"jwt_secret": "test-secret",
			"token_ttl":  60,
		},
		"scheduler": map[string]interface{}{
			"enabled":  true,
			"time":     "00:05",
			"timezone": "UTC",
		},
		"logging": map[string]interface{}{
			"level":  "debug",
			"format": "console",
			"output": "stdout",
		},
	}
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, validConfigDoc())

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "carrotwars", cfg.Database.Postgres.Database)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "00:05", cfg.Scheduler.Time)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, validConfigDoc())

	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("AUTH_JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoad_MissingRequired(t *testing.T) {
	doc := validConfigDoc()
	delete(doc, "auth")
	path := writeConfigFile(t, doc)

	_, err := Load(path)
	assert.ErrorContains(t, err, "auth.jwt_secret is required")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	doc := validConfigDoc()
	doc["scheduler"] = map[string]interface{}{
		"enabled":  true,
		"time":     "00:05",
		"timezone": "Mars/Olympus_Mons",
	}
	path := writeConfigFile(t, doc)

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid scheduler.timezone")
}

func TestAuthConfig_TokenTTLDuration(t *testing.T) {
	assert.Equal(t, "24h0m0s", (&AuthConfig{}).TokenTTLDuration().String())
	assert.Equal(t, "30m0s", (&AuthConfig{TokenTTL: 30}).TokenTTLDuration().String())
}
