package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type SessionConfig struct {
	// GracePeriod is how long an abandoned game is kept alive so a
	// disconnected player can rejoin before the game is deleted.
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

type DatabaseConfig struct {
	// Enabled turns the finished-game archive on. The relay runs fine
	// without a database; live games are never persisted either way.
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // "gorm" or "postgres"
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8001")
	viper.SetDefault("server.rpc_address", ":8002")
	viper.SetDefault("server.metrics_address", ":9091")
	viper.SetDefault("session.grace_period", 120*time.Second)
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)

	viper.AutomaticEnv()
	_ = viper.BindEnv("server.port", "PORT")

	if err = viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// PORT overrides the listen address, matching the original deploy contract.
	if port := viper.GetString("server.port"); port != "" {
		config.Server.HTTPAddress = ":" + port
	}

	return config, nil
}
