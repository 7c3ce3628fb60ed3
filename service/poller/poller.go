// Package poller runs one poll cycle of a monitoring service: fetch, decode,
// reconcile, and record the service health.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/pkg/utils"
	"github.com/opsyhq/opsy/service/backend"
	"github.com/opsyhq/opsy/service/reconcile"
	"github.com/opsyhq/opsy/service/store"
)

const maxStatusMessage = 1024

type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindDecode        ErrorKind = "decode"
	KindStorage       ErrorKind = "storage"
	KindConfiguration ErrorKind = "configuration"
	KindDisabled      ErrorKind = "disabled"
)

// Outcome is the result of one poll cycle. Kind and Err are set unless OK.
type Outcome struct {
	OK      bool
	Kind    ErrorKind
	Err     error
	Result  *reconcile.Result
	Skipped int
}

func (o Outcome) String() string {
	if o.OK {
		return "ok"
	}
	return fmt.Sprintf("%s: %v", o.Kind, o.Err)
}

// Kind classifies a poll cycle error.
func Kind(err error) ErrorKind {
	var netErr *backend.NetworkError
	var decodeErr *backend.DecodeError
	switch {
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.Is(err, backend.ErrUnknownBackend), errors.Is(err, backend.ErrInvalidConfig):
		return KindConfiguration
	default:
		return KindStorage
	}
}

type Poller struct {
	store  *store.Store
	engine *reconcile.Engine
	client *backend.Client
	now    func() time.Time
	log    zerolog.Logger
}

func New(s *store.Store, engine *reconcile.Engine, client *backend.Client) *Poller {
	return &Poller{
		store:  s,
		engine: engine,
		client: client,
		now:    time.Now,
		log:    logger.WithComponent("poller"),
	}
}

// RunPollCycle polls one service. A failure aborts only this cycle: cached
// events are left untouched and the service health reports the cause.
func (p *Poller) RunPollCycle(ctx context.Context, serviceID string) Outcome {
	svc, err := p.store.MonitoringService(ctx, serviceID)
	if err != nil {
		p.log.Error().Err(err).Str("service_id", serviceID).Msg("load monitoring service")
		return Outcome{Kind: KindStorage, Err: err}
	}
	log := p.log.With().Str("service", svc.Name).Str("backend", string(svc.BackendKind)).Logger()

	if !svc.Enabled {
		p.setHealth(ctx, log, svc.ID, model.ServiceStatusDisabled, "Disabled")
		return Outcome{Kind: KindDisabled, Err: errors.New("monitoring service is disabled")}
	}

	outcome := p.poll(ctx, svc)
	if !outcome.OK {
		log.Error().Err(outcome.Err).Str("kind", string(outcome.Kind)).Msg("poll cycle failed")
		p.setHealth(ctx, log, svc.ID, model.ServiceStatusCritical, outcome.Err.Error())
		return outcome
	}

	if outcome.Skipped > 0 {
		p.setHealth(ctx, log, svc.ID, model.ServiceStatusWarning, fmt.Sprintf("skipped %d malformed records", outcome.Skipped))
	} else {
		p.setHealth(ctx, log, svc.ID, model.ServiceStatusOK, "Success")
	}
	log.Debug().
		Int("resolved", len(outcome.Result.Resolved)).
		Int("updated", len(outcome.Result.Updated)).
		Int("inserted", len(outcome.Result.Inserted)).
		Int("skipped", outcome.Skipped).
		Msg("poll cycle finished")
	return outcome
}

func (p *Poller) poll(ctx context.Context, svc *model.MonitoringService) Outcome {
	fail := func(err error) Outcome {
		return Outcome{Kind: Kind(err), Err: err}
	}

	b, err := backend.New(svc.BackendKind)
	if err != nil {
		return fail(err)
	}
	batch, err := p.client.Poll(ctx, b, svc.BackendConfig)
	if err != nil {
		return fail(err)
	}
	result, err := p.engine.Reconcile(ctx, svc.ID, batch.Events)
	if err != nil {
		return fail(err)
	}
	return Outcome{OK: true, Result: result, Skipped: batch.Skipped}
}

func (p *Poller) setHealth(ctx context.Context, log zerolog.Logger, id string, status model.ServiceStatus, message string) {
	// health is recorded even when the cycle was cancelled
	ctx = context.WithoutCancel(ctx)
	if err := p.store.UpdateServiceHealth(ctx, id, status, utils.Truncate(message, maxStatusMessage), p.now()); err != nil {
		log.Error().Err(err).Msg("update service health")
	}
}
