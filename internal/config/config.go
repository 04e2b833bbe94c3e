package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL   string        `mapstructure:"api_url" yaml:"api_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Gateway  GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
}

type GatewayConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Origin   string `mapstructure:"origin" yaml:"origin"`
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// StaticDir holds the application's static assets. When the origin
	// is the gateway's own address, these are what it serves for them.
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		APIURL:   "https://librus-pwa-backend.onrender.com",
		CacheTTL: 5 * time.Minute,
		Gateway: GatewayConfig{
			Addr:   "127.0.0.1:8970",
			Origin: "http://127.0.0.1:8970",
		},
	}
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LIBRUSCLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if cfg.Gateway.CacheDir == "" {
		dir, err := Dir()
		if err != nil {
			return cfg, err
		}
		cfg.Gateway.CacheDir = filepath.Join(dir, "worker-cache")
	}

	return cfg, nil
}

func Save(cfg Config) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("cache_ttl", cfg.CacheTTL)
	v.SetDefault("gateway.addr", cfg.Gateway.Addr)
	v.SetDefault("gateway.origin", cfg.Gateway.Origin)
}

func Validate(cfg Config) error {
	if cfg.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	return nil
}
