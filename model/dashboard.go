package model

import "github.com/opsyhq/opsy/pkg/filter"

// Dashboard filter names, shared by every filterable entity.
const (
	FilterZone              = "zone"
	FilterMonitoringService = "monitoring_service"
	FilterHost              = "host"
	FilterCheck             = "check"
	FilterGroup             = "group"
)

var DashboardFilterNames = []string{FilterZone, FilterMonitoringService, FilterHost, FilterCheck, FilterGroup}

func IsDashboardFilterName(name string) bool {
	for _, n := range DashboardFilterNames {
		if n == name {
			return true
		}
	}
	return false
}

// Filterable is an entity type that declares, in order, which of its fields
// dashboards may filter.
type Filterable interface {
	DashboardFilterFields() []filter.Field
}

type Dashboard struct {
	Common
	Name        string            `gorm:"uniqueIndex;not null" json:"name"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Filters     []DashboardFilter `json:"filters"`
}

type DashboardFilter struct {
	Common
	DashboardID string `gorm:"size:36;not null;uniqueIndex:idx_dashboard_filter_entity" json:"dashboard_id"`
	Entity      string `gorm:"not null;uniqueIndex:idx_dashboard_filter_entity" json:"entity"`
	Filters     string `json:"filters"`
}

// Filter returns the filter string configured for entity, if any.
func (d *Dashboard) Filter(entity string) string {
	for _, f := range d.Filters {
		if f.Entity == entity {
			return f.Filters
		}
	}
	return ""
}

// Predicates compiles the configured filter strings against the fields the
// entity type declares. Unconfigured fields contribute nothing.
func (d *Dashboard) Predicates(entity Filterable) []filter.Predicate {
	return d.PredicatesWith(filter.Compile, entity)
}

// PredicatesWith is Predicates with a custom compiler, such as filter.Cache.
func (d *Dashboard) PredicatesWith(compile func(string) *filter.Expr, entity Filterable) []filter.Predicate {
	var preds []filter.Predicate
	for _, field := range entity.DashboardFilterFields() {
		expr := compile(d.Filter(field.Name))
		if expr.Empty() {
			continue
		}
		preds = append(preds, expr.Scope(field))
	}
	return preds
}
