// Command probe polls a monitoring backend once and prints the decoded
// events, without touching the event cache.
package main

import (
	"context"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/pkg/utils"
	"github.com/opsyhq/opsy/service/backend"
	"github.com/opsyhq/opsy/service/reconcile"
)

type ProbeCliParam struct {
	Backend  string
	Insecure bool
	Debug    bool
	Config   model.BackendConfig
}

func main() {
	var param ProbeCliParam
	flag.StringVarP(&param.Backend, "backend", "b", string(model.BackendSensu), "backend kind")
	flag.StringVarP(&param.Config.Host, "host", "H", "localhost", "backend host")
	flag.StringVar(&param.Config.Protocol, "protocol", "", "http or https, backend default when empty")
	flag.IntVarP(&param.Config.Port, "port", "p", 0, "backend port, backend default when 0")
	flag.StringVar(&param.Config.Path, "path", "", "base path, backend default when empty")
	flag.IntVarP(&param.Config.Timeout, "timeout", "t", model.DefaultRequestTimeout, "request timeout in seconds")
	flag.StringVarP(&param.Config.Username, "user", "u", "", "basic auth user")
	flag.StringVar(&param.Config.Password, "password", "", "basic auth password")
	flag.BoolVarP(&param.Insecure, "insecure", "k", false, "skip TLS verification")
	flag.BoolVarP(&param.Debug, "debug", "d", false, "debug logging")
	flag.Parse()

	if err := logger.Init(logger.Config{Debug: param.Debug, Output: "stderr"}); err != nil {
		panic(err)
	}
	param.Config.VerifySSL = !param.Insecure

	svc := &model.MonitoringService{BackendKind: model.BackendKind(param.Backend), BackendConfig: param.Config}
	if err := backend.Configure(svc); err != nil {
		logger.Fatal().Err(err).Strs("backends", kinds()).Msg("invalid backend")
	}
	b, err := backend.New(svc.BackendKind)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backend")
	}

	logger.Info().Str("url", svc.BackendConfig.BaseURL()).Strs("resources", b.Resources()).Msg("polling")
	batch, err := backend.NewClient("opsy-probe/"+model.Version).Poll(context.Background(), b, svc.BackendConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("poll failed")
	}

	// against an empty cache every event is an insert
	plan := reconcile.Diff(nil, batch.Events)
	out := utils.Json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(map[string]interface{}{
		"events":  plan.Insert,
		"skipped": batch.Skipped,
	}); err != nil {
		logger.Fatal().Err(err).Msg("encode")
	}
}

func kinds() []string {
	var out []string
	for _, k := range backend.Kinds() {
		out = append(out, string(k))
	}
	return out
}
