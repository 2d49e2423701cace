// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml and config.<APP_ENVIRONMENT>.yaml,
// then applies env overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v, env)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, os.Getenv("APP_ENVIRONMENT"))
}

func finish(v *viper.Viper, env string) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		// Unset variables expand to empty so defaults apply.
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// overrideFromEnv applies the well-known variable names used by deployments.
func overrideFromEnv(cfg *Config) {
	setIfEmpty := func(dst *string, name string) {
		if *dst == "" {
			if val := os.Getenv(name); val != "" {
				*dst = val
			}
		}
	}

	setIfEmpty(&cfg.APIs.GenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.APIs.GenAI.BaseURL, "OPENAI_BASE_URL")
	setIfEmpty(&cfg.APIs.GenAI.Model, "OPENAI_MODEL")
	setIfEmpty(&cfg.Payment.StripeSecretKey, "STRIPE_SECRET_KEY")
	setIfEmpty(&cfg.Payment.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setIfEmpty(&cfg.Server.FrontendURL, "FRONTEND_URL")
	setIfEmpty(&cfg.Server.Address, "SERVER_ADDRESS")
	setIfEmpty(&cfg.Store.Driver, "STORE_DRIVER")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")

	if len(cfg.Server.AllowedOrigins) == 0 {
		if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
			for _, origin := range strings.Split(val, ",") {
				if origin = strings.TrimSpace(origin); origin != "" {
					cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "visa-guru-api"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120000
	}
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = "http://localhost:3000"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://frontend:3000"}
	}

	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gpt-4"
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 60000
	}
	if cfg.APIs.GenAI.MaxRetries == 0 {
		cfg.APIs.GenAI.MaxRetries = 1
	}

	if cfg.Payment.AmountCents == 0 {
		cfg.Payment.AmountCents = 4900
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "usd"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.TTL == 0 {
		cfg.Store.TTL = 7 * 24 * 3600
	}
	if cfg.Store.CacheTTL == 0 {
		cfg.Store.CacheTTL = 600
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Research.Source == "" {
		cfg.Research.Source = "static"
	}
	if cfg.Research.Index == "" {
		cfg.Research.Index = "visa_requirements"
	}
	if cfg.Research.CacheTTL == 0 {
		cfg.Research.CacheTTL = 3600
	}

	if cfg.Delivery.Region == "" {
		cfg.Delivery.Region = "us-east-1"
	}
	if cfg.Delivery.Timeout == 0 {
		cfg.Delivery.Timeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Steps == nil {
		cfg.Steps = map[string]StepConfig{}
	}
	for name, step := range cfg.Steps {
		if step.Timeout == 0 {
			step.Timeout = cfg.APIs.GenAI.Timeout
		}
		cfg.Steps[name] = step
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Driver {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for store driver redis")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for store driver postgres")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for store driver postgres")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required for store driver postgres")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory, redis, postgres", cfg.Store.Driver)
	}

	switch cfg.Research.Source {
	case "static":
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for research source elasticsearch")
		}
	default:
		return fmt.Errorf("research.source %q is not one of static, elasticsearch", cfg.Research.Source)
	}

	if cfg.Delivery.Enabled && cfg.Delivery.FromEmail == "" {
		return fmt.Errorf("delivery.from_email is required when delivery is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStepConfig returns the named step's settings, or defaults derived
// from the GenAI section when the step is not configured.
func GetStepConfig(cfg *Config, stepName string) StepConfig {
	if step, exists := cfg.Steps[stepName]; exists {
		return step
	}
	return StepConfig{
		Enabled: true,
		Timeout: cfg.APIs.GenAI.Timeout,
	}
}
