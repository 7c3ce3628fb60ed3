// Package singleton holds the process wide services of the dashboard.
package singleton

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/filter"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/service/backend"
	"github.com/opsyhq/opsy/service/poller"
	"github.com/opsyhq/opsy/service/reconcile"
	"github.com/opsyhq/opsy/service/scheduler"
	"github.com/opsyhq/opsy/service/store"
)

var (
	Conf        *model.Config
	Store       *store.Store
	Poller      *poller.Poller
	Scheduler   *scheduler.Scheduler
	FilterCache *filter.Cache
)

// InitConfigFromPath loads the configuration and the logger. Log level
// changes in the file apply without a restart.
func InitConfigFromPath(path string) error {
	conf, err := model.ReadInConfig(path, onConfigChange)
	if err != nil {
		return err
	}
	if conf.Debug {
		conf.Log.Debug = true
	}
	if err := logger.Init(conf.Log); err != nil {
		return err
	}
	Conf = conf
	return nil
}

func onConfigChange(updated *model.Config) {
	level, err := zerolog.ParseLevel(updated.Log.Level)
	if err != nil || updated.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	if updated.Debug || updated.Log.Debug {
		level = zerolog.DebugLevel
	}
	logger.SetLevel(level)
	logger.Info().Str("level", level.String()).Msg("configuration reloaded")
}

// InitStoreFromPath opens the event cache database.
func InitStoreFromPath(path string) error {
	s, err := store.Open(path, Conf.Debug)
	if err != nil {
		return err
	}
	Store = s
	return nil
}

// LoadSingleton wires the poll pipeline on top of the store and starts
// scheduling the enabled monitoring services.
func LoadSingleton(ctx context.Context) error {
	FilterCache = filter.NewCache(Conf.FilterCacheTTL)
	engine := reconcile.New(Store, reconcile.Options{
		Attempts:        Conf.Poll.RetryAttempts,
		InitialInterval: Conf.Poll.RetryInitialInterval,
		Randomization:   Conf.Poll.RetryRandomization,
	})
	Poller = poller.New(Store, engine, backend.NewClient(Conf.Poll.UserAgent))
	Scheduler = scheduler.New(Store, Poller)
	return Scheduler.Start(ctx)
}

// Close stops the scheduler, waiting for running poll cycles, and closes the
// store.
func Close() error {
	if Scheduler != nil {
		Scheduler.Stop()
	}
	if Store != nil {
		return Store.Close()
	}
	return nil
}
