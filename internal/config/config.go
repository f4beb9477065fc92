package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHistoryLimit  = 10
	defaultChatListLimit = 20
	defaultSendRate      = 1.0
	defaultDeviceModel   = "Desktop"
)

type Config struct {
	Telegram      TelegramConfig `yaml:"telegram"`
	LogLevel      string         `yaml:"log_level"`
	HistoryLimit  int            `yaml:"history_limit"`
	ChatListLimit int            `yaml:"chat_list_limit"`
	// AuthTimeout bounds the login dialogue. Zero waits forever.
	AuthTimeout time.Duration `yaml:"auth_timeout"`
	// SendRate is the number of outgoing messages allowed per second.
	SendRate float64 `yaml:"send_rate"`
}

type TelegramConfig struct {
	APIID         int    `yaml:"api_id"`
	APIHash       string `yaml:"api_hash"`
	DeviceModel   string `yaml:"device_model"`
	SystemVersion string `yaml:"system_version"`
	AppVersion    string `yaml:"app_version"`
	LangCode      string `yaml:"lang_code"`
}

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "tgterm")
}

// AccountsDir is where per-account session records live.
func AccountsDir(cfgDir string) string {
	return filepath.Join(cfgDir, "accounts")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		return nil, fmt.Errorf("telegram.api_id and telegram.api_hash are required")
	}
	if cfg.AuthTimeout < 0 {
		return nil, fmt.Errorf("auth_timeout must not be negative")
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TGTERM_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TGTERM_API_ID: %w", err)
		}
		c.Telegram.APIID = id
	}
	if v := os.Getenv("TGTERM_API_HASH"); v != "" {
		c.Telegram.APIHash = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.ChatListLimit <= 0 {
		c.ChatListLimit = defaultChatListLimit
	}
	if c.SendRate <= 0 {
		c.SendRate = defaultSendRate
	}
	if c.Telegram.DeviceModel == "" {
		c.Telegram.DeviceModel = defaultDeviceModel
	}
	if c.Telegram.AppVersion == "" {
		c.Telegram.AppVersion = "1.0"
	}
	if c.Telegram.LangCode == "" {
		c.Telegram.LangCode = "en"
	}
}
