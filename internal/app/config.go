package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/confirmaparty/confirma/internal/database"
)

// Config represents the runtime configuration for the Confirma backend.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// CronSecret guards the queue-processing trigger endpoint. Empty means
	// the endpoint is open, which is only sensible in development.
	CronSecret string `mapstructure:"cron_secret"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// WhatsAppConfig selects and configures the outbound message transport.
type WhatsAppConfig struct {
	// Mode selects the transport: "cloud", "meow", or "mock".
	Mode  string              `mapstructure:"mode"`
	Cloud WhatsAppCloudConfig `mapstructure:"cloud"`
	Meow  WhatsAppMeowConfig  `mapstructure:"meow"`

	// WebhookVerifyToken answers the Cloud API webhook verification
	// handshake. Empty disables verification.
	WebhookVerifyToken string `mapstructure:"webhook_verify_token"`
}

// WhatsAppCloudConfig holds WhatsApp Cloud API credentials.
type WhatsAppCloudConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	AccessToken   string        `mapstructure:"access_token"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// WhatsAppMeowConfig configures the direct WhatsApp Web session.
type WhatsAppMeowConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// SchedulerConfig tunes the background dispatch loop and the pacing of sends.
type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Spec        string        `mapstructure:"spec"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	SendSpacing time.Duration `mapstructure:"send_spacing"`
	Pacing      time.Duration `mapstructure:"pacing"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// DatabaseSettings converts the config section into the database package's
// connection options.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
	}

	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql":
		cfg.Host = c.Postgres.Host
		cfg.Port = c.Postgres.Port
		cfg.Name = c.Postgres.Database
		cfg.User = c.Postgres.Username
		cfg.Password = c.Postgres.Password
	case "mysql":
		cfg.Host = c.MySQL.Host
		cfg.Port = c.MySQL.Port
		cfg.Name = c.MySQL.Database
		cfg.User = c.MySQL.Username
		cfg.Password = c.MySQL.Password
	}

	return cfg
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CONFIRMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cron_secret", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/confirma.sqlite")

	v.SetDefault("whatsapp.mode", "mock")
	v.SetDefault("whatsapp.cloud.base_url", "")
	v.SetDefault("whatsapp.cloud.timeout", "30s")
	v.SetDefault("whatsapp.meow.data_dir", "./data")
	v.SetDefault("whatsapp.webhook_verify_token", "")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("scheduler.batch_size", 50)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.retry_delay", "5m")
	v.SetDefault("scheduler.send_spacing", "3s")
	v.SetDefault("scheduler.pacing", "2s")
	v.SetDefault("scheduler.send_timeout", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
