package reconcile

import "github.com/opsyhq/opsy/model"

// Update pairs a cached event with the record that refreshes it.
type Update struct {
	Event    model.Event
	Incoming model.CanonicalEvent
}

// Plan is the staged outcome of one poll for one service.
type Plan struct {
	Resolve []model.Event
	Update  []Update
	Insert  []model.CanonicalEvent
}

func (p Plan) Empty() bool {
	return len(p.Resolve) == 0 && len(p.Update) == 0 && len(p.Insert) == 0
}

// Diff compares the open events of a service with a freshly polled list.
// Open events no longer reported are resolved, reported ones are updated and
// the rest inserted. When a key is reported twice the last record wins.
func Diff(cached []model.Event, incoming []model.CanonicalEvent) Plan {
	var plan Plan

	order := make([]model.EventKey, 0, len(incoming))
	latest := make(map[model.EventKey]model.CanonicalEvent, len(incoming))
	for _, e := range incoming {
		k := e.Key()
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = e
	}

	open := make(map[model.EventKey]model.Event, len(cached))
	for _, c := range cached {
		k := c.Key()
		_, reported := latest[k]
		if _, dup := open[k]; dup || !reported {
			plan.Resolve = append(plan.Resolve, c)
			continue
		}
		open[k] = c
	}

	for _, k := range order {
		if c, ok := open[k]; ok {
			plan.Update = append(plan.Update, Update{Event: c, Incoming: latest[k]})
			continue
		}
		plan.Insert = append(plan.Insert, latest[k])
	}
	return plan
}
