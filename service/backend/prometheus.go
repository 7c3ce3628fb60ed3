package backend

import (
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/utils"
)

const prometheusAlerts = "alerts"

// Prometheus decodes the v2 alerts API of an Alertmanager. Suppressed alerts
// are not reported.
type Prometheus struct {
	log zerolog.Logger
}

func (p *Prometheus) Kind() model.BackendKind {
	return model.BackendPrometheus
}

func (p *Prometheus) Resources() []string {
	return []string{prometheusAlerts}
}

func (p *Prometheus) Decode(payloads map[string][]byte) (*Batch, error) {
	items, err := records(payloads, prometheusAlerts)
	if err != nil {
		return nil, err
	}
	batch := &Batch{Events: make([]model.CanonicalEvent, 0, len(items))}
	for i, item := range items {
		event, err := p.decodeAlert(item)
		if err != nil {
			batch.Skipped++
			p.log.Warn().Err(err).Int("index", i).Str("record", utils.Truncate(item.Raw, 256)).Msg("skipping malformed alert")
			continue
		}
		if item.Get("status.state").String() == "suppressed" {
			continue
		}
		batch.Events = append(batch.Events, event)
	}
	return batch, nil
}

func (p *Prometheus) decodeAlert(item gjson.Result) (model.CanonicalEvent, error) {
	if !item.IsObject() {
		return model.CanonicalEvent{}, utils.ErrGjsonWrongType
	}
	host, err := utils.GjsonString(item, "labels.instance")
	if err != nil {
		return model.CanonicalEvent{}, err
	}
	check, err := utils.GjsonString(item, "labels.alertname")
	if err != nil {
		return model.CanonicalEvent{}, err
	}
	if host == "" || check == "" {
		return model.CanonicalEvent{}, utils.ErrGjsonNotFound
	}
	updatedAt := rfc3339Time(item.Get("annotations.activeSince"))
	if updatedAt == nil {
		updatedAt = rfc3339Time(item.Get("startsAt"))
	}
	return model.CanonicalEvent{
		HostName:  host,
		CheckName: check,
		Status:    ordinalStatus(item.Get("annotations.value")),
		Command:   item.Get("annotations.alertingRule").String(),
		Output:    item.Get("annotations.description").String(),
		UpdatedAt: updatedAt,
		Raw:       item.Raw,
	}, nil
}
