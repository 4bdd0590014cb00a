// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Mail providers.
const (
	MailProviderAPI  = "api"
	MailProviderSMTP = "smtp"
)

// Config holds every setting the server and CLI need. Values come from defaults, then an
// optional JSON file, then environment variables, then the OS keyring for unset secrets.
type Config struct {
	// Server
	Port              int      `json:"port,omitempty" validate:"gte=1,lte=65535"`
	MaxConcurrentRuns int      `json:"max_concurrent_runs,omitempty" validate:"gte=1"`
	CORSOrigins       []string `json:"cors_origins,omitempty"`
	LogLevel          string   `json:"log_level,omitempty" validate:"oneof=debug info warn error"`

	// Store
	DatabaseDriver string `json:"database_driver,omitempty" validate:"oneof=postgres sqlite"`
	DatabaseURL    string `json:"database_url,omitempty" validate:"required_if=DatabaseDriver postgres"`
	SQLitePath     string `json:"sqlite_path,omitempty" validate:"required_if=DatabaseDriver sqlite"`

	// Providers
	SearchAPIKey       string  `json:"search_api_key,omitempty"`
	SearchBaseURL      string  `json:"search_base_url,omitempty" validate:"omitempty,url"`
	SearchMaxResults   int     `json:"search_max_results,omitempty" validate:"gte=1"`
	EnrichAPIKey       string  `json:"enrich_api_key,omitempty"`
	EnrichBaseURL      string  `json:"enrich_base_url,omitempty" validate:"omitempty,url"`
	EnrichRevealEmails bool    `json:"enrich_reveal_emails"`
	ProviderRPS        float64 `json:"provider_rps,omitempty" validate:"gte=0"`

	// Mail
	MailProvider string `json:"mail_provider,omitempty" validate:"oneof=api smtp"`
	MailAPIKey   string `json:"mail_api_key,omitempty"`
	MailBaseURL  string `json:"mail_base_url,omitempty" validate:"omitempty,url"`
	SMTPHost     string `json:"smtp_host,omitempty" validate:"required_if=MailProvider smtp"`
	SMTPPort     int    `json:"smtp_port,omitempty" validate:"gte=1,lte=65535"`
	SMTPUser     string `json:"smtp_user,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
	SenderEmail  string `json:"sender_email,omitempty" validate:"omitempty,email"`
	SenderName   string `json:"sender_name,omitempty"`

	// Drafting
	TemplatesPath string `json:"templates_path,omitempty"`
	GeminiAPIKey  string `json:"gemini_api_key,omitempty"`
	GeminiModel   string `json:"gemini_model,omitempty"`

	// Events
	AMQPURL      string `json:"amqp_url,omitempty"`
	AMQPExchange string `json:"amqp_exchange,omitempty"`

	// Auth
	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty" validate:"gte=1"`
	JWTIssuer          string `json:"jwt_issuer,omitempty"`
}

var configValidator = validator.New()

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Port:               8080,
		MaxConcurrentRuns:  4,
		CORSOrigins:        []string{"*"},
		LogLevel:           "info",
		DatabaseDriver:     DriverPostgres,
		SQLitePath:         "lead_engine.db",
		SearchMaxResults:   100,
		EnrichRevealEmails: true,
		ProviderRPS:        2,
		MailProvider:       MailProviderAPI,
		SMTPPort:           587,
		SenderName:         "Lead Engine",
		JWTExpirationHours: 24,
		JWTIssuer:          "lead-engine",
	}
}

// LoadConfig reads a JSON config file over the defaults. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration: defaults, the JSON file at path (optional),
// environment variables, then keyring secrets. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *fileCfg
	}

	env := newEnvReader()
	cfg.applyEnv(env)
	if err := env.err(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if !env.getBool("KEYRING_DISABLED", false) {
		cfg.applySecrets(keyringSource{})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(env *envReader) {
	c.Port = env.getInt("PORT", c.Port)
	c.MaxConcurrentRuns = env.getInt("MAX_CONCURRENT_RUNS", c.MaxConcurrentRuns)
	c.CORSOrigins = env.getList("CORS_ALLOWED_ORIGINS", c.CORSOrigins)
	c.LogLevel = env.getLower("LOG_LEVEL", c.LogLevel)

	c.DatabaseDriver = env.getLower("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = env.getString("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = env.getString("SQLITE_PATH", c.SQLitePath)

	c.SearchAPIKey = env.getString("SEARCH_API_KEY", c.SearchAPIKey)
	c.SearchBaseURL = env.getString("SEARCH_BASE_URL", c.SearchBaseURL)
	c.SearchMaxResults = env.getInt("SEARCH_MAX_RESULTS", c.SearchMaxResults)
	c.EnrichAPIKey = env.getString("ENRICH_API_KEY", c.EnrichAPIKey)
	c.EnrichBaseURL = env.getString("ENRICH_BASE_URL", c.EnrichBaseURL)
	c.EnrichRevealEmails = env.getBool("ENRICH_REVEAL_EMAILS", c.EnrichRevealEmails)
	c.ProviderRPS = env.getFloat("PROVIDER_RPS", c.ProviderRPS)

	c.MailProvider = env.getLower("MAIL_PROVIDER", c.MailProvider)
	c.MailAPIKey = env.getString("MAIL_API_KEY", c.MailAPIKey)
	c.MailBaseURL = env.getString("MAIL_BASE_URL", c.MailBaseURL)
	c.SMTPHost = env.getString("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = env.getInt("SMTP_PORT", c.SMTPPort)
	c.SMTPUser = env.getString("SMTP_USER", c.SMTPUser)
	c.SMTPPassword = env.getString("SMTP_PASSWORD", c.SMTPPassword)
	c.SenderEmail = env.getString("DEFAULT_SENDER_EMAIL", c.SenderEmail)
	c.SenderName = env.getString("DEFAULT_SENDER_NAME", c.SenderName)

	c.TemplatesPath = env.getString("TEMPLATES_PATH", c.TemplatesPath)
	c.GeminiAPIKey = env.getString("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = env.getString("GEMINI_MODEL", c.GeminiModel)

	c.AMQPURL = env.getString("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = env.getString("AMQP_EXCHANGE", c.AMQPExchange)

	c.JWTSecret = env.getString("JWT_SECRET", c.JWTSecret)
	c.JWTExpirationHours = env.getInt("JWT_EXPIRATION_HOURS", c.JWTExpirationHours)
	c.JWTIssuer = env.getString("JWT_ISSUER", c.JWTIssuer)
}

// Validate checks that the configuration has valid values.
// Provider keys are not required here; a missing key fails when that provider is used.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config error: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required_if":
		return fmt.Sprintf("'%s' is required when %s", name, strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("'%s' must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("'%s' is out of range: %v", name, fe.Value())
	case "url", "email":
		return fmt.Sprintf("'%s' is not a valid %s: %v", name, fe.Tag(), fe.Value())
	default:
		return fmt.Sprintf("'%s' failed %s", name, fe.Tag())
	}
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DatabaseDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

// LLMEnabled reports whether draft rewriting is available.
func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
