// Package reconcile applies polled events to the cache: it resolves events no
// longer reported, refreshes the ones still reported and inserts new ones, all
// in one transaction per poll.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/service/store"
)

// ErrRetriesExhausted is returned when every attempt hit a write conflict.
// Nothing was committed.
var ErrRetriesExhausted = errors.New("reconcile: retries exhausted")

type Options struct {
	// Attempts bounds how often the apply step runs, 3 when unset.
	Attempts int
	// InitialInterval is the mean wait between attempts, 1s when unset.
	InitialInterval time.Duration
	// Randomization spreads the wait uniformly by this factor around the mean.
	Randomization float64
}

type Engine struct {
	store *store.Store
	opts  Options
	now   func() time.Time
	log   zerolog.Logger
}

func New(s *store.Store, opts Options) *Engine {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.Randomization < 0 || opts.Randomization >= 1 {
		opts.Randomization = 0.5
	}
	return &Engine{
		store: s,
		opts:  opts,
		now:   time.Now,
		log:   logger.WithComponent("reconcile"),
	}
}

// Result lists the ids of the events touched by a reconciliation.
type Result struct {
	Resolved []string `json:"resolved"`
	Updated  []string `json:"updated"`
	Inserted []string `json:"inserted"`
}

func (e *Engine) backOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     e.opts.InitialInterval,
		RandomizationFactor: e.opts.Randomization,
		Multiplier:          1,
		MaxInterval:         e.opts.InitialInterval,
	}
}

// Reconcile brings the cached events of a service in line with incoming.
// An empty incoming list resolves every open event of the service. On a
// write conflict the whole read, diff and write is retried.
func (e *Engine) Reconcile(ctx context.Context, serviceID string, incoming []model.CanonicalEvent) (*Result, error) {
	attempt := 0
	op := func() (*Result, error) {
		attempt++
		result, err := e.apply(ctx, serviceID, incoming)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(e.backOff()),
		backoff.WithMaxTries(uint(e.opts.Attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			e.log.Warn().Err(err).
				Str("service_id", serviceID).
				Int("attempt", attempt).
				Dur("retry_in", wait).
				Msg("write conflict, retrying")
		}),
	)
	if err != nil {
		// the last attempt is returned as is, permanent or not
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		return nil, err
	}

	e.log.Debug().
		Str("service_id", serviceID).
		Int("resolved", len(result.Resolved)).
		Int("updated", len(result.Updated)).
		Int("inserted", len(result.Inserted)).
		Msg("reconciled")
	return result, nil
}

func (e *Engine) apply(ctx context.Context, serviceID string, incoming []model.CanonicalEvent) (*Result, error) {
	var result *Result
	err := e.store.Transaction(ctx, func(tx *store.Tx) error {
		svc, err := tx.MonitoringService(serviceID)
		if err != nil {
			return err
		}
		cached, err := tx.UnresolvedEvents(serviceID)
		if err != nil {
			return err
		}
		result, err = e.write(tx, svc, Diff(cached, incoming))
		return err
	})
	return result, err
}

func (e *Engine) write(tx *store.Tx, svc *model.MonitoringService, plan Plan) (*Result, error) {
	result := &Result{
		Resolved: make([]string, 0, len(plan.Resolve)),
		Updated:  make([]string, 0, len(plan.Update)),
		Inserted: make([]string, 0, len(plan.Insert)),
	}
	now := e.now()

	for _, c := range plan.Resolve {
		result.Resolved = append(result.Resolved, c.ID)
	}
	if err := tx.ResolveEvents(svc.ID, result.Resolved, now); err != nil {
		return nil, err
	}

	hosts := make(map[string]*model.HostRef)
	lookup := func(name string) (*model.HostRef, error) {
		if ref, ok := hosts[name]; ok {
			return ref, nil
		}
		ref, err := tx.LookupHostByName(name)
		if err != nil {
			return nil, err
		}
		hosts[name] = ref
		return ref, nil
	}

	zoneName := ""
	if svc.Zone != nil {
		zoneName = svc.Zone.Name
	}

	updated := make([]model.Event, 0, len(plan.Update))
	for _, u := range plan.Update {
		host, err := lookup(u.Incoming.HostName)
		if err != nil {
			return nil, err
		}
		ev := u.Event
		ev.Apply(u.Incoming, host)
		ev.MonitoringServiceName = svc.Name
		ev.ZoneName = zoneName
		updated = append(updated, ev)
		result.Updated = append(result.Updated, ev.ID)
	}
	if err := tx.SaveEvents(updated); err != nil {
		return nil, err
	}

	inserted := make([]model.Event, 0, len(plan.Insert))
	for _, c := range plan.Insert {
		host, err := lookup(c.HostName)
		if err != nil {
			return nil, err
		}
		ev := model.Event{
			MonitoringServiceID:   svc.ID,
			MonitoringServiceName: svc.Name,
			ZoneName:              zoneName,
			State:                 model.EventStateNew,
		}
		ev.Apply(c, host)
		inserted = append(inserted, ev)
	}
	if err := tx.CreateEvents(inserted); err != nil {
		return nil, err
	}
	for _, ev := range inserted {
		result.Inserted = append(result.Inserted, ev.ID)
	}
	return result, nil
}
