package model

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/pkg/utils"
)

// Config ..
type Config struct {
	Debug    bool
	Listen   string
	Database string
	Log      logger.Config
	Poll     struct {
		DefaultInterval      int // seconds, for services without one
		UserAgent            string
		RetryAttempts        int           // attempts of the reconciliation apply step
		RetryInitialInterval time.Duration // mean wait between attempts
		RetryRandomization   float64       // wait is spread by this factor around the mean
	}
	FilterCacheTTL time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8008")
	v.SetDefault("database", "data/opsy.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("poll.defaultinterval", DefaultPollInterval)
	v.SetDefault("poll.useragent", "opsy/"+Version)
	v.SetDefault("poll.retryattempts", 3)
	v.SetDefault("poll.retryinitialinterval", time.Second)
	v.SetDefault("poll.retryrandomization", 0.5)
	v.SetDefault("filtercachettl", 10*time.Minute)
}

// ReadInConfig loads path, falling back to defaults when it does not exist.
// onChange, if not nil, receives a freshly parsed copy whenever the file
// changes.
func ReadInConfig(path string, onChange func(*Config)) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("opsy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	exists := utils.IsFileExists(path)
	if exists {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if exists && onChange != nil {
		v.OnConfigChange(func(in fsnotify.Event) {
			var updated Config
			if err := v.Unmarshal(&updated); err != nil {
				logger.Error().Err(err).Str("file", in.Name).Msg("reload config")
				return
			}
			onChange(&updated)
		})
		go v.WatchConfig()
	}
	return &c, nil
}
