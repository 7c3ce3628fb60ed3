package backend

import (
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/utils"
)

const (
	sensuEvents   = "events"
	sensuSilenced = "silenced"
)

// Sensu decodes the events API of a Sensu server. Silenced events are not
// reported.
type Sensu struct {
	log zerolog.Logger
}

func (s *Sensu) Kind() model.BackendKind {
	return model.BackendSensu
}

func (s *Sensu) Resources() []string {
	return []string{sensuEvents, sensuSilenced}
}

type sensuSilence struct {
	subscription string
	check        string
}

// covers reports whether the silence applies to check on host.
func (s sensuSilence) covers(host, check string) bool {
	if s.subscription != "" && s.subscription != "client:"+host {
		return false
	}
	return s.check == "" || s.check == check
}

func (s *Sensu) Decode(payloads map[string][]byte) (*Batch, error) {
	items, err := records(payloads, sensuEvents)
	if err != nil {
		return nil, err
	}
	silences, err := s.silences(payloads)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Events: make([]model.CanonicalEvent, 0, len(items))}
	for i, item := range items {
		event, err := s.decodeEvent(item)
		if err != nil {
			batch.Skipped++
			s.log.Warn().Err(err).Int("index", i).Str("record", utils.Truncate(item.Raw, 256)).Msg("skipping malformed sensu event")
			continue
		}
		if item.Get("silenced").Bool() || silenced(silences, event.HostName, event.CheckName) {
			continue
		}
		batch.Events = append(batch.Events, event)
	}
	return batch, nil
}

func (s *Sensu) silences(payloads map[string][]byte) ([]sensuSilence, error) {
	if _, ok := payloads[sensuSilenced]; !ok {
		return nil, nil
	}
	items, err := records(payloads, sensuSilenced)
	if err != nil {
		return nil, err
	}
	silences := make([]sensuSilence, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		silences = append(silences, sensuSilence{
			subscription: item.Get("subscription").String(),
			check:        item.Get("check").String(),
		})
	}
	return silences, nil
}

func silenced(silences []sensuSilence, host, check string) bool {
	for _, s := range silences {
		if s.covers(host, check) {
			return true
		}
	}
	return false
}

func (s *Sensu) decodeEvent(item gjson.Result) (model.CanonicalEvent, error) {
	if !item.IsObject() {
		return model.CanonicalEvent{}, utils.ErrGjsonWrongType
	}
	host, err := utils.GjsonString(item, "client.name")
	if err != nil {
		return model.CanonicalEvent{}, err
	}
	check, err := utils.GjsonString(item, "check.name")
	if err != nil {
		return model.CanonicalEvent{}, err
	}
	if host == "" || check == "" {
		return model.CanonicalEvent{}, utils.ErrGjsonNotFound
	}
	return model.CanonicalEvent{
		HostName:    host,
		CheckName:   check,
		Status:      ordinalStatus(item.Get("check.status")),
		Command:     item.Get("check.command").String(),
		Output:      item.Get("check.output").String(),
		Occurrences: int(item.Get("occurrences").Int()),
		Interval:    int(item.Get("check.interval").Int()),
		UpdatedAt:   unixTime(item.Get("timestamp")),
		Raw:         item.Raw,
	}, nil
}
