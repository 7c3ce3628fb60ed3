// Package backend polls monitoring backends over HTTP and decodes their
// payloads into canonical events.
package backend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
)

var (
	ErrUnknownBackend = errors.New("backend: unknown backend kind")
	ErrInvalidConfig  = errors.New("backend: invalid backend config")
	// ErrPayloadTooLarge is a response body above the 64MiB limit.
	ErrPayloadTooLarge = errors.New("backend: payload exceeds 64MiB")
)

// NetworkError is a failed request: transport error, timeout or a status
// other than 200.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError is a payload that could not be decoded at all. Single bad
// records are skipped instead.
type DecodeError struct {
	Resource string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Resource, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Batch is the decoded result of one poll.
type Batch struct {
	Events  []model.CanonicalEvent
	Skipped int
}

type Backend interface {
	Kind() model.BackendKind
	// Resources are the paths, relative to the base URL, fetched on each poll.
	Resources() []string
	// Decode turns the fetched payloads, keyed by resource, into events.
	Decode(payloads map[string][]byte) (*Batch, error)
}

type definition struct {
	defaults model.BackendConfig
	new      func(log zerolog.Logger) Backend
}

var registry = map[model.BackendKind]definition{
	model.BackendSensu: {
		defaults: model.BackendConfig{Protocol: "http", Port: 4567},
		new:      func(log zerolog.Logger) Backend { return &Sensu{log: log} },
	},
	model.BackendPrometheus: {
		defaults: model.BackendConfig{Protocol: "http", Port: 9093, Path: "/api/v2"},
		new:      func(log zerolog.Logger) Backend { return &Prometheus{log: log} },
	},
}

// Kinds lists the supported backend kinds.
func Kinds() []model.BackendKind {
	kinds := make([]model.BackendKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New returns the backend of the given kind.
func New(kind model.BackendKind) (Backend, error) {
	def, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
	log := logger.WithComponent("backend").With().Str("backend", string(kind)).Logger()
	return def.new(log), nil
}

// Configure validates the backend of svc and fills in the defaults of its
// kind for unset connection settings.
func Configure(svc *model.MonitoringService) error {
	def, ok := registry[svc.BackendKind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, svc.BackendKind)
	}
	cfg := &svc.BackendConfig
	if cfg.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Protocol == "" {
		cfg.Protocol = def.defaults.Protocol
	}
	if cfg.Protocol != "http" && cfg.Protocol != "https" {
		return fmt.Errorf("%w: unsupported protocol %q", ErrInvalidConfig, cfg.Protocol)
	}
	if cfg.Port == 0 {
		cfg.Port = def.defaults.Port
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.Path == "" {
		cfg.Path = def.defaults.Path
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultRequestTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = model.DefaultPollInterval
	}
	return nil
}
