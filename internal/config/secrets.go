package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "lead-engine"

// Secret names accepted by SetSecret and DeleteSecret.
const (
	SecretSearchAPIKey = "search_api_key"
	SecretEnrichAPIKey = "enrich_api_key"
	SecretMailAPIKey   = "mail_api_key"
	SecretSMTPPassword = "smtp_password"
	SecretGeminiAPIKey = "gemini_api_key"
	SecretJWTSecret    = "jwt_secret"
)

// SecretNames lists every secret the keyring may hold.
var SecretNames = []string{
	SecretSearchAPIKey,
	SecretEnrichAPIKey,
	SecretMailAPIKey,
	SecretSMTPPassword,
	SecretGeminiAPIKey,
	SecretJWTSecret,
}

type secretSource interface {
	Get(name string) (string, error)
}

type keyringSource struct{}

func (keyringSource) Get(name string) (string, error) {
	return keyring.Get(KeyringService, name)
}

// applySecrets fills unset secret fields from src. Lookup failures are ignored; the keyring
// is a fallback and is often unavailable on servers.
func (c *Config) applySecrets(src secretSource) {
	fields := map[string]*string{
		SecretSearchAPIKey: &c.SearchAPIKey,
		SecretEnrichAPIKey: &c.EnrichAPIKey,
		SecretMailAPIKey:   &c.MailAPIKey,
		SecretSMTPPassword: &c.SMTPPassword,
		SecretGeminiAPIKey: &c.GeminiAPIKey,
		SecretJWTSecret:    &c.JWTSecret,
	}
	for name, field := range fields {
		if *field != "" {
			continue
		}
		value, err := src.Get(name)
		if err == nil && strings.TrimSpace(value) != "" {
			*field = value
		}
	}
}

// SetSecret stores a secret in the OS keyring.
func SetSecret(name, value string) error {
	if err := checkSecretName(name); err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, name, value)
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(name string) error {
	if err := checkSecretName(name); err != nil {
		return err
	}
	if err := keyring.Delete(KeyringService, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("secret %q is not set", name)
		}
		return err
	}
	return nil
}

func checkSecretName(name string) error {
	if !slices.Contains(SecretNames, name) {
		return fmt.Errorf("unknown secret %q (expected one of %s)", name, strings.Join(SecretNames, ", "))
	}
	return nil
}
