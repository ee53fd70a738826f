package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"watchkeeper/internal/models"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Worker        WorkerConfig        `yaml:"worker"`
	Update        UpdateConfig        `yaml:"update"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Resources     ResourcesConfig     `yaml:"resources"`
}

type ServerConfig struct {
	Address  string `yaml:"address,omitempty"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// AuthEnabled reports whether control endpoints require basic auth.
func (s ServerConfig) AuthEnabled() bool {
	return s.Username != "" && s.Password != ""
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "load env file %s", p)
		}
	}
	return nil
}

// Load reads the yaml file at path, applies environment overrides, fills
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("BASIC_AUTH_USER"); v != "" {
		c.Server.Username = v
	}
	if v := os.Getenv("BASIC_AUTH_PASS"); v != "" {
		c.Server.Password = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	token, chatID := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID")
	if token != "" && chatID != "" {
		c.Notifications.Channels = append(c.Notifications.Channels, ChannelConfig{
			Name:   "telegram-env",
			Kind:   models.ChannelTelegram,
			Token:  token,
			ChatID: chatID,
			Active: true,
		})
	}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		c.Notifications.Channels = append(c.Notifications.Channels, ChannelConfig{
			Name:   "webhook-env",
			Kind:   models.ChannelWebhook,
			URL:    url,
			Active: true,
		})
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Address == "" {
		c.Server.Address = fmt.Sprintf(":%d", c.Server.Port)
	}

	c.Worker.setDefaults()
	c.Update.setDefaults(c.Worker.Directory)
	c.Notifications.setDefaults()
	c.Logging.setDefaults()
	c.Resources.setDefaults()
}

// Validate checks the fields that have no sensible default.
func (c *Config) Validate() error {
	if c.Worker.Command == "" {
		return errors.New("worker.command is required")
	}
	if c.Update.IntervalDays < 0 {
		return errors.New("update.interval_days must not be negative")
	}
	for i, ch := range c.Notifications.Channels {
		switch ch.Kind {
		case models.ChannelTelegram:
			if ch.Token == "" || ch.ChatID == "" {
				return errors.Errorf("notifications.channels[%d]: telegram needs token and chat_id", i)
			}
		case models.ChannelWebhook:
			if ch.URL == "" {
				return errors.Errorf("notifications.channels[%d]: webhook needs url", i)
			}
		default:
			return errors.Errorf("notifications.channels[%d]: unknown kind %q", i, ch.Kind)
		}
	}
	return nil
}
