package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Token     TokenConfig     `yaml:"token"`
	Session   SessionConfig   `yaml:"session"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type AppConfig struct {
	Name      string `yaml:"name" envconfig:"APP_NAME"`
	Port      string `yaml:"port" envconfig:"APP_PORT"`
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host" envconfig:"DB_HOST"`
	Port            string        `yaml:"port" envconfig:"DB_PORT"`
	User            string        `yaml:"user" envconfig:"DB_USER"`
	Password        string        `yaml:"password" envconfig:"DB_PASSWORD"`
	DBName          string        `yaml:"dbname" envconfig:"DB_NAME"`
	SSLMode         string        `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConns        int32         `yaml:"max_conns" envconfig:"DB_MAX_CONNS"`
	MinConns        int32         `yaml:"min_conns" envconfig:"DB_MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" envconfig:"DB_MAX_CONN_LIFETIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" envconfig:"DB_AUTO_MIGRATE"`
}

type TokenConfig struct {
	Secret string `yaml:"secret" envconfig:"TOKEN_SECRET"`
	Issuer string `yaml:"issuer" envconfig:"TOKEN_ISSUER"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
}

type RedisConfig struct {
	URL         string        `yaml:"url" envconfig:"REDIS_URL"`
	DialTimeout time.Duration `yaml:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type RateLimitConfig struct {
	Window     time.Duration `yaml:"window" envconfig:"RATE_LIMIT_WINDOW"`
	IPLimit    int           `yaml:"ip_limit" envconfig:"RATE_LIMIT_IP"`
	EmailLimit int           `yaml:"email_limit" envconfig:"RATE_LIMIT_EMAIL"`
}

// Load builds the configuration from defaults, the optional YAML file at
// yamlPath, the optional dotenv file at envPath and finally the process
// environment. Later sources override earlier ones.
func Load(yamlPath, envPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := cfg.loadYAML(yamlPath); err != nil {
			return nil, err
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewConfig loads the configuration using CONFIG_PATH and a .env file in the
// working directory.
func NewConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_PATH"), ".env")
}

func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "user-service"
	cfg.App.Port = "8080"
	cfg.App.LogLevel = "info"
	cfg.App.LogFormat = "json"
	cfg.Postgres.Port = "5432"
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.AutoMigrate = true
	cfg.Token.Issuer = "user-service"
	cfg.Session.IdleTimeout = 30 * time.Minute
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.RateLimit.Window = time.Minute
	cfg.RateLimit.IPLimit = 20
	cfg.RateLimit.EmailLimit = 5
	return cfg
}

func (c *Config) loadYAML(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case c.Token.Secret == "":
		return errors.New("TOKEN_SECRET is required")
	case c.Postgres.Host == "":
		return errors.New("DB_HOST is required")
	case c.Postgres.User == "":
		return errors.New("DB_USER is required")
	case c.Postgres.DBName == "":
		return errors.New("DB_NAME is required")
	case c.Session.IdleTimeout <= 0:
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}
	return nil
}

// DSN renders the keyword/value connection string understood by pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// MigrateURL renders the pgx5:// URL expected by golang-migrate.
func (p PostgresConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}
