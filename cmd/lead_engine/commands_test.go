package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/jonathan/lead-engine/internal/config"
	"github.com/jonathan/lead-engine/internal/server"
)

func TestMigrateCommand(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Schema applied to sqlite store")

	out, err = execute(t, "migrate")
	require.NoError(t, err, "migrating twice is a no-op: %s", out)
}

func TestTokenCommand(t *testing.T) {
	isolateEnv(t)
	secret := "a-long-enough-test-secret"
	t.Setenv("JWT_SECRET", secret)

	out, err := execute(t, "token", "--subject", "dashboard")
	require.NoError(t, err, out)

	service := server.NewJWTService(&config.JWTConfig{Secret: secret, Issuer: "lead-engine", TTL: 24 * time.Hour})
	claims, err := service.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
}

func TestTokenCommand_AuthDisabled(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "token", "--subject", "dashboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is not set")
}

func TestTokenCommand_TTL(t *testing.T) {
	isolateEnv(t)
	secret := "a-long-enough-test-secret"
	t.Setenv("JWT_SECRET", secret)

	before := time.Now()
	out, err := execute(t, "token", "--subject", "ci", "--ttl", "10m")
	require.NoError(t, err, out)

	service := server.NewJWTService(&config.JWTConfig{Secret: secret, Issuer: "lead-engine", TTL: time.Hour})
	claims, err := service.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(10*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestSecretsCommands(t *testing.T) {
	keyring.MockInit()

	out, err := execute(t, "secrets", "set", config.SecretSearchAPIKey, "search-key")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Stored search_api_key")

	value, err := keyring.Get(config.KeyringService, config.SecretSearchAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "search-key", value)

	rootCmd.SetIn(strings.NewReader("from-stdin\n"))
	_, err = execute(t, "secrets", "set", config.SecretMailAPIKey)
	require.NoError(t, err)
	value, err = keyring.Get(config.KeyringService, config.SecretMailAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", value)

	out, err = execute(t, "secrets", "delete", config.SecretSearchAPIKey)
	require.NoError(t, err, out)
	_, err = keyring.Get(config.KeyringService, config.SecretSearchAPIKey)
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	_, err = execute(t, "secrets", "delete", config.SecretSearchAPIKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not set")

	_, err = execute(t, "secrets", "set", "password", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown secret")
}
