// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	DBDriver             string        `mapstructure:"DB_DRIVER"`
	DBSource             string        `mapstructure:"DB_SOURCE"`
	ServerAddress        string        `mapstructure:"SERVER_ADDRESS"`
	QueueConcurrency     int           `mapstructure:"QUEUE_CONCURRENCY"`
	JobRetention         int           `mapstructure:"JOB_RETENTION"`
	BalanceCacheTTL      time.Duration `mapstructure:"BALANCE_CACHE_TTL"`
	CacheCleanupInterval time.Duration `mapstructure:"CACHE_CLEANUP_INTERVAL"`
	Environement         string        `mapstructure:"GO_ENV"`
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("QUEUE_CONCURRENCY", 2)
	viper.SetDefault("JOB_RETENTION", 1000)
	viper.SetDefault("BALANCE_CACHE_TTL", time.Hour)
	viper.SetDefault("CACHE_CLEANUP_INTERVAL", 5*time.Minute)

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
