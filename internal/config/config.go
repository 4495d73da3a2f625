package config

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/kalambet/dialbook/internal/phone"
	"github.com/kalambet/dialbook/internal/phonebook"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Phone   PhoneConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
	Token    string
}

type StorageConfig struct {
	DataDir string
	SlotKey string
}

type PhoneConfig struct {
	CountryCode    string
	NationalLength int
}

// Plan returns the numbering plan described by the config.
func (c PhoneConfig) Plan() phone.Plan {
	return phone.Plan{CountryCode: c.CountryCode, NationalLength: c.NationalLength}
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			SlotKey: phonebook.DefaultSlotKey,
		},
		Phone: PhoneConfig{
			CountryCode:    phone.DefaultPlan.CountryCode,
			NationalLength: phone.DefaultPlan.NationalLength,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the YAML file at ConfigFilePath, a .env file
// in the working directory, and DIALBOOK_* environment variables, in that
// order of increasing precedence. Variables already set in the environment
// are never replaced by .env entries.
func Load() (Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()
	return loadWith(newFileBackend(ConfigFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	applyBackend(&cfg, b)
	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := cfg.Phone.Plan().Validate(); err != nil {
		return fmt.Errorf("invalid phone config: %w", err)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConns < 1 {
		return fmt.Errorf("invalid server.max_conns %d", cfg.Server.MaxConns)
	}
	if cfg.Storage.SlotKey == "" {
		return fmt.Errorf("storage.slot_key must not be empty")
	}
	return nil
}
