package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Log       LogConfig
	NATS      NATSConfig
	Americano AmericanoConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver         string
	DSN            string
	MigrationsPath string
}

type LogConfig struct {
	Level  string
	Format string
}

// NATSConfig is optional: an empty URL disables event publishing.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type AmericanoConfig struct {
	// Above this many candidate combinations per pool the generator stops enumerating and picks greedily.
	ExhaustiveLimit int
}

const envPrefix = "PADEL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "padel.db?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	v.SetDefault("database.migrations", "file://migrations")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "padel")
	v.SetDefault("americano.exhaustive_limit", 200000)
}

// Load reads .env (if present), an optional config.yaml and PADEL_* environment variables, in increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Driver:         v.GetString("database.driver"),
			DSN:            v.GetString("database.dsn"),
			MigrationsPath: v.GetString("database.migrations"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		NATS: NATSConfig{
			URL:           v.GetString("nats.url"),
			SubjectPrefix: v.GetString("nats.subject_prefix"),
		},
		Americano: AmericanoConfig{
			ExhaustiveLimit: v.GetInt("americano.exhaustive_limit"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.Americano.ExhaustiveLimit <= 0 {
		return fmt.Errorf("americano exhaustive limit must be positive, got %d", c.Americano.ExhaustiveLimit)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
