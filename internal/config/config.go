package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultPort is used when the server argument carries no port
const DefaultPort = 6667

// Usage is printed when the positional arguments are wrong
const Usage = "Usage: tgrelay [-c config.yaml] <server[:port]> <channel> <nickname> <telegram-token>"

var (
	// ErrUsage means the wrong number of positional arguments was given
	ErrUsage = errors.New("wrong number of arguments")
	// ErrBadPort means the port part of the server argument is not a valid port
	ErrBadPort = errors.New("erroneous port")
)

// Config holds all relay configuration. Server, Port, Channel, Nick and
// Token come from the command line; the rest from the optional YAML file
// and TGRELAY_* environment variables.
type Config struct {
	Server  string `yaml:"-"`
	Port    int    `yaml:"-"`
	Channel string `yaml:"-"`
	Nick    string `yaml:"-"`
	Token   string `yaml:"-"`

	Username   string `yaml:"username" env:"TGRELAY_USERNAME"`
	IRCName    string `yaml:"irc_name" env:"TGRELAY_IRC_NAME"`
	ServerPass string `yaml:"server_pass" env:"TGRELAY_SERVER_PASS"`
	UseTLS     bool   `yaml:"tls" env:"TGRELAY_TLS"`

	// OwnerID is the Telegram chat id told about operational problems
	OwnerID string `yaml:"owner_id" env:"TGRELAY_OWNER_ID"`

	SettingsFile string `yaml:"settings_file" env:"TGRELAY_SETTINGS_FILE"`
	// Storage selects the settings backend: "json" or "bolt"
	Storage string `yaml:"storage" env:"TGRELAY_STORAGE"`

	LogLevel string `yaml:"log_level" env:"TGRELAY_LOG_LEVEL"`
	LogFile  string `yaml:"log_file" env:"TGRELAY_LOG_FILE"`

	Webhook Webhook `yaml:"webhook"`
}

// Webhook switches Telegram from long polling to webhook delivery when URL is set
type Webhook struct {
	URL    string `yaml:"url" env:"TGRELAY_WEBHOOK_URL"`
	Listen string `yaml:"listen" env:"TGRELAY_WEBHOOK_LISTEN"`
	// Secret is the last path segment of the registered webhook
	Secret string `yaml:"secret" env:"TGRELAY_WEBHOOK_SECRET"`
}

// Load reads an optional YAML configuration file, applies environment
// overrides and fills in defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Set defaults
	if cfg.SettingsFile == "" {
		cfg.SettingsFile = "telegram_bot_users.save"
	}
	if cfg.Storage == "" {
		cfg.Storage = "json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.Listen == "" {
		cfg.Webhook.Listen = ":8443"
	}

	switch cfg.Storage {
	case "json", "bolt":
	default:
		return nil, fmt.Errorf("unknown storage %q, want json or bolt", cfg.Storage)
	}

	return &cfg, nil
}

// ApplyArgs fills the connection settings from the positional arguments
// <server[:port]> <channel> <nickname> <telegram-token>
func (c *Config) ApplyArgs(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: got %d, want 4", ErrUsage, len(args))
	}

	server, port, err := ParseServer(args[0])
	if err != nil {
		return err
	}
	c.Server = server
	c.Port = port
	c.Channel = args[1]
	c.Nick = args[2]
	c.Token = args[3]

	if c.Username == "" {
		c.Username = c.Nick
	}
	if c.IRCName == "" {
		c.IRCName = c.Nick
	}
	return nil
}

// ParseServer splits "host[:port]", defaulting the port to 6667
func ParseServer(arg string) (string, int, error) {
	host, portStr, found := strings.Cut(arg, ":")
	if !found {
		return host, DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadPort, portStr)
	}
	return host, port, nil
}
