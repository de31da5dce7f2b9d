// Package config loads service configuration using Viper.
// Values come from defaults, an optional config file and the environment,
// with environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Feedback backends.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendNone      = "none"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Feedback    FeedbackConfig
	Twilio      TwilioConfig
	Fulfillment FulfillmentConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// FeedbackConfig selects and configures the feedback store.
type FeedbackConfig struct {
	Backend    string
	Collection string

	// Firestore
	ProjectID       string
	CredentialsFile string

	// PostgreSQL
	DatabaseURL string
}

// TwilioConfig holds messaging gateway credentials and sender identity.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	Channel    string
}

// FulfillmentConfig holds dispatcher settings.
type FulfillmentConfig struct {
	ShareLink   string
	CallTimeout time.Duration
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fulfillment")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Environment:     v.GetString("server.env"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Feedback: FeedbackConfig{
			Backend:         strings.ToLower(v.GetString("feedback.backend")),
			Collection:      v.GetString("feedback.collection"),
			ProjectID:       v.GetString("firestore.project_id"),
			CredentialsFile: v.GetString("firestore.credentials_file"),
			DatabaseURL:     v.GetString("database.url"),
		},
		Twilio: TwilioConfig{
			AccountSID: v.GetString("twilio.account_sid"),
			AuthToken:  v.GetString("twilio.auth_token"),
			From:       v.GetString("twilio.from"),
			Channel:    v.GetString("twilio.channel"),
		},
		Fulfillment: FulfillmentConfig{
			ShareLink:   v.GetString("fulfillment.share_link"),
			CallTimeout: v.GetDuration("fulfillment.call_timeout"),
		},
	}
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("feedback.backend", BackendFirestore)
	v.SetDefault("feedback.collection", "feedback")

	v.SetDefault("twilio.from", "whatsapp:+14155238886")
	v.SetDefault("twilio.channel", "whatsapp")

	v.SetDefault("fulfillment.share_link", "https://www.google.com/search?q=https://example.com/share")
	v.SetDefault("fulfillment.call_timeout", "10s")
}

// bindLegacyEnv maps the variable names used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":                {"SERVER_PORT", "PORT"},
		"twilio.account_sid":         {"TWILIO_ACCOUNT_SID"},
		"twilio.auth_token":          {"TWILIO_AUTH_TOKEN"},
		"firestore.project_id":       {"FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
		"firestore.credentials_file": {"FIRESTORE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
		"database.url":               {"DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks that configuration values are usable. Missing collaborator
// credentials are allowed; the service then runs with that collaborator
// disabled.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}

	switch c.Feedback.Backend {
	case BackendFirestore, BackendNone:
	case BackendPostgres:
		if c.Feedback.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres feedback backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown feedback backend %q", c.Feedback.Backend))
	}

	if c.Feedback.Backend != BackendNone && c.Feedback.Collection == "" {
		problems = append(problems, "feedback collection must not be empty")
	}
	if c.Feedback.Backend == BackendFirestore && strings.Contains(c.Feedback.Collection, "/") {
		problems = append(problems, fmt.Sprintf("firestore collection %q must be a top-level collection ID", c.Feedback.Collection))
	}

	if c.Fulfillment.CallTimeout <= 0 {
		problems = append(problems, "fulfillment call timeout must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
