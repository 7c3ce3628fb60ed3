package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/opsyhq/opsy/cmd/dashboard/controller"
	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/service/singleton"
)

type DashboardCliParam struct {
	Version          bool
	ConfigFile       string
	DatabaseLocation string // overrides the database of the config file
}

var dashboardCliParam DashboardCliParam

func init() {
	flag.CommandLine.ParseErrorsWhitelist.UnknownFlags = true
	flag.BoolVarP(&dashboardCliParam.Version, "version", "v", false, "print the version and exit")
	flag.StringVarP(&dashboardCliParam.ConfigFile, "config", "c", "data/config.yaml", "config file path")
	flag.StringVarP(&dashboardCliParam.DatabaseLocation, "db", "d", "", "sqlite3 database file path")
	flag.Parse()
}

func main() {
	if dashboardCliParam.Version {
		println(model.Version)
		return
	}

	if err := singleton.InitConfigFromPath(dashboardCliParam.ConfigFile); err != nil {
		logger.Fatal().Err(err).Str("config", dashboardCliParam.ConfigFile).Msg("load config")
	}
	if dashboardCliParam.DatabaseLocation != "" {
		singleton.Conf.Database = dashboardCliParam.DatabaseLocation
	}
	if err := singleton.InitStoreFromPath(singleton.Conf.Database); err != nil {
		logger.Fatal().Err(err).Str("database", singleton.Conf.Database).Msg("open database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := singleton.LoadSingleton(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	srv := &http.Server{
		Addr:              singleton.Conf.Listen,
		Handler:           controller.ServeWeb(),
		ReadHeaderTimeout: time.Second * 5,
	}
	go func() {
		logger.Info().Str("listen", srv.Addr).Str("version", model.Version).Msg("dashboard started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	if err := singleton.Close(); err != nil {
		logger.Error().Err(err).Msg("close store")
	}
}
