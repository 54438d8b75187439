// Package config loads panel configuration from file, environment, and flags via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the panel.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Zones   ZonesConfig   `mapstructure:"zones"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	Static  string        `mapstructure:"static_dir"`
	Tray    bool          `mapstructure:"tray"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AuthConfig holds the admin account and session settings.
type AuthConfig struct {
	AdminUser     string        `mapstructure:"admin_user"`
	AdminPassword string        `mapstructure:"admin_password"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

// CameraConfig holds capture defaults.
type CameraConfig struct {
	FPS    int `mapstructure:"fps"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ZonesConfig holds zone persistence settings.
type ZonesConfig struct {
	Path string `mapstructure:"path"`
}

// StoreConfig holds database settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Addr returns the host:port address the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("camera.fps", 30)
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("zones.path", "zones_config.json")
	v.SetDefault("store.path", "shopsight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("static_dir", "")
	v.SetDefault("tray", false)
}

// Load reads configuration from the given file (optional), the SHOPSIGHT_*
// environment, and defaults. A missing config file is not an error; an
// unreadable or malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOPSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return cfg, nil
}
