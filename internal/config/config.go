package config

import (
	"fmt"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`
	DataDir      string `env:"DATA_DIR" envDefault:"data"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	// RedisAddr enables the cross-instance change relay when set
	RedisAddr string `env:"REDIS_ADDR"`

	Locale    string        `env:"SITE_LOCALE" envDefault:"ru"`
	TimeZone  string        `env:"EVENT_TIMEZONE" envDefault:"Asia/Almaty"`
	ChoiceTTL time.Duration `env:"CHOICE_TTL" envDefault:"8760h"`

	Event Event

	WhatsAppEnabled    bool     `env:"WHATSAPP_ENABLED" envDefault:"false"`
	WhatsAppDataDir    string   `env:"WHATSAPP_DATA_DIR" envDefault:"data"`
	WhatsAppHostPhones []string `env:"WHATSAPP_HOST_PHONES" envSeparator:","`
	// WhatsAppNotifyTimeout bounds one background notification of the hosts
	WhatsAppNotifyTimeout time.Duration `env:"WHATSAPP_NOTIFY_TIMEOUT" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Event describes the celebration shown on the invitation page
type Event struct {
	Title   string `env:"EVENT_TITLE" envDefault:"Той"`
	Hosts   string `env:"EVENT_HOSTS"`
	Date    string `env:"EVENT_DATE" envDefault:"16.11.2025, 17:00"`
	Venue   string `env:"EVENT_VENUE" envDefault:"Sadu Grand Hall"`
	Address string `env:"EVENT_ADDRESS" envDefault:"Алматы"`
	MapURL  string `env:"EVENT_MAP_URL" envDefault:"https://2gis.kz/almaty/geo/43.251467,76.75248"`
}

// LoadConfig loads configuration from environment variables or defaults
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env parsing cannot
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.ChoiceTTL <= 0 {
		return fmt.Errorf("CHOICE_TTL must be positive, got %s", c.ChoiceTTL)
	}
	if c.WhatsAppNotifyTimeout <= 0 {
		return fmt.Errorf("WHATSAPP_NOTIFY_TIMEOUT must be positive, got %s", c.WhatsAppNotifyTimeout)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid EVENT_TIMEZONE: %w", err)
	}
	if c.WhatsAppEnabled && len(c.WhatsAppHostPhones) == 0 {
		return fmt.Errorf("WHATSAPP_HOST_PHONES is required when WHATSAPP_ENABLED is set")
	}
	return nil
}

// StorePath is the file the selected backend keeps guests in
func (c *Config) StorePath() string {
	if c.StoreBackend == BackendFile {
		return filepath.Join(c.DataDir, "guests.json")
	}
	return filepath.Join(c.DataDir, "guests.db")
}

// Location is the event time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
