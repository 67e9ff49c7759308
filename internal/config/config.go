package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Jazys/instagen-sub000/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server     models.ServerConfig      `yaml:"server"`
	Database   models.DatabaseConfig    `yaml:"database"`
	Redis      *models.RedisConfig      `yaml:"redis,omitempty"`
	Auth       models.AuthConfig        `yaml:"auth"`
	Billing    *models.StripeConfig     `yaml:"billing,omitempty"`
	Credits    models.CreditsConfig     `yaml:"credits"`
	Generation *models.GenerationConfig `yaml:"generation,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// Validate checks that the configuration is complete enough to start serving.
func (c *Config) Validate() error {
	if c.Database.Type == "" {
		return fmt.Errorf("database.type is required")
	}
	switch c.Database.Type {
	case models.PostgreSQL, models.MySQL:
		if c.Database.DSN == "" && c.Database.Database == "" {
			return fmt.Errorf("database.dsn or database.database is required for %s", c.Database.Type)
		}
	case models.SQLite:
		if c.Database.FilePath == "" {
			return fmt.Errorf("database.file_path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	switch c.Auth.Provider {
	case "clerk":
		if c.Auth.ClerkConfig == nil || c.Auth.ClerkConfig.SecretKey == "" {
			return fmt.Errorf("auth.clerk.secret_key is required for the clerk provider")
		}
	case "jwt":
		if c.Auth.JWTConfig == nil || c.Auth.JWTConfig.Secret == "" {
			return fmt.Errorf("auth.jwt.secret is required for the jwt provider")
		}
	case "":
		return fmt.Errorf("auth.provider is required (clerk or jwt)")
	default:
		return fmt.Errorf("unsupported auth provider: %s", c.Auth.Provider)
	}

	if c.Billing != nil {
		if c.Billing.SecretKey == "" {
			return fmt.Errorf("billing.secret_key is required when billing is configured")
		}
		if c.Billing.WebhookSecret == "" {
			return fmt.Errorf("billing.webhook_secret is required when billing is configured")
		}
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	// Pattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
