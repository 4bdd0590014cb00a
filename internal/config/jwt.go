package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const minJWTSecretLen = 16

// JWTConfig holds the settings for issuing and checking API tokens.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// JWT returns the token settings. Auth is optional, so a missing secret is only an
// error once a caller asks for tokens.
func (c *Config) JWT() (*JWTConfig, error) {
	var problems []string
	switch {
	case c.JWTSecret == "":
		problems = append(problems, "JWT_SECRET is required but not set")
	case len(c.JWTSecret) < minJWTSecretLen:
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	if c.JWTExpirationHours < 1 {
		problems = append(problems, fmt.Sprintf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.JWTExpirationHours))
	}
	if strings.TrimSpace(c.JWTIssuer) == "" {
		problems = append(problems, "JWT_ISSUER must not be blank")
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return &JWTConfig{
		Secret: c.JWTSecret,
		Issuer: strings.TrimSpace(c.JWTIssuer),
		TTL:    time.Duration(c.JWTExpirationHours) * time.Hour,
	}, nil
}
