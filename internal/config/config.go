package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type GatewayConfig struct {
	URL     string `mapstructure:"url"`      // websocket event stream
	APIBase string `mapstructure:"api_base"` // REST base for actions
	Token   string `mapstructure:"token"`
	Prefix  string `mapstructure:"prefix"`
}

type EvalConfig struct {
	URL string `mapstructure:"url"`
}

type PasteConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	// Port for the admin API; 0 disables it.
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type PolicyConfig struct {
	File string `mapstructure:"file"`
}

type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Paste   PasteConfig   `mapstructure:"paste"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Policy  PolicyConfig  `mapstructure:"policy"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("evalbot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.evalbot")

	v.SetDefault("gateway.prefix", "!")
	v.SetDefault("eval.url", "http://localhost:8060/eval")
	v.SetDefault("paste.url", "http://localhost:9000")
	v.SetDefault("server.port", 0)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".evalbot", "evalbot.db"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in the gateway token
	cfg.Gateway.Token = expandEnv(cfg.Gateway.Token)

	return &cfg, nil
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
