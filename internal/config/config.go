package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	ServerAddress     string        `mapstructure:"SERVER_ADDRESS"`
	StorageDriver     string        `mapstructure:"STORAGE_DRIVER"` // "memory" or "postgres"
	PostgresConn      string        `mapstructure:"POSTGRES_CONN"`
	MigrationURL      string        `mapstructure:"MIGRATION_URL"`
	ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
}

// LoadConfig loads configuration from an optional app.env file and the
// environment. Defaults run the service fully in memory.
func LoadConfig(path string) (cfg Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("STORAGE_DRIVER", "memory")
	viper.SetDefault("MIGRATION_URL", "file://migrations")
	viper.SetDefault("RECONCILE_INTERVAL", 5*time.Second)

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil // config file is optional
	}
	err = viper.Unmarshal(&cfg)
	return
}
