package model

import (
	"time"

	"github.com/opsyhq/opsy/pkg/filter"
)

type EventStatus string

const (
	EventStatusOK       EventStatus = "ok"
	EventStatusWarning  EventStatus = "warning"
	EventStatusCritical EventStatus = "critical"
	EventStatusUnknown  EventStatus = "unknown"
)

// eventStatusOrdinals maps backend exit codes to statuses.
var eventStatusOrdinals = []EventStatus{EventStatusOK, EventStatusWarning, EventStatusCritical}

// StatusFromOrdinal maps a backend status code, anything out of range is unknown.
func StatusFromOrdinal(code int64) EventStatus {
	if code < 0 || code >= int64(len(eventStatusOrdinals)) {
		return EventStatusUnknown
	}
	return eventStatusOrdinals[code]
}

type EventState string

const (
	EventStateNew          EventState = "new"
	EventStateAcknowledged EventState = "acknowledged"
	EventStateResolved     EventState = "resolved"
)

// Event is the cached state of one check on one host as reported by one
// monitoring service. At most one unresolved event exists per EventKey and
// service, which the store enforces with a partial unique index.
type Event struct {
	Common
	MonitoringServiceID   string             `gorm:"size:36;not null;index" json:"monitoring_service_id"`
	MonitoringService     *MonitoringService `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MonitoringServiceName string             `json:"monitoring_service_name"`
	ZoneName              string             `json:"zone_name,omitempty"`
	HostID                *string            `gorm:"size:36;index" json:"host_id,omitempty"`
	HostName              string             `gorm:"not null" json:"host_name"`
	CheckName             string             `gorm:"not null" json:"check_name"`
	Status                EventStatus        `json:"status"`
	State                 EventState         `json:"state"`
	Occurrences           int                `json:"occurrences"`
	Command               string             `json:"command,omitempty"`
	Output                string             `json:"output,omitempty"`
	Interval              int                `json:"interval,omitempty"`
	LastReportedAt        *time.Time         `json:"last_reported_at,omitempty"`
	Resolved              bool               `gorm:"not null;index" json:"resolved"`
	ResolvedAt            *time.Time         `json:"resolved_at,omitempty"`
	Extra                 string             `json:"extra,omitempty"`
}

func (Event) TableName() string {
	return "monitoring_events"
}

// EventKey identifies an event within one monitoring service.
type EventKey struct {
	HostName  string
	CheckName string
}

func (e *Event) Key() EventKey {
	return EventKey{HostName: e.HostName, CheckName: e.CheckName}
}

// Apply overwrites the mutable fields from a freshly polled record. State is
// kept so an acknowledged event stays acknowledged.
func (e *Event) Apply(c CanonicalEvent, host *HostRef) {
	e.HostName = c.HostName
	e.CheckName = c.CheckName
	e.Status = c.Status
	e.Command = c.Command
	e.Output = c.Output
	e.Occurrences = c.Occurrences
	e.Interval = c.Interval
	e.LastReportedAt = c.UpdatedAt
	e.Extra = c.Raw
	e.HostID = nil
	if host != nil {
		id := host.ID
		e.HostID = &id
	}
	if e.State == "" {
		e.State = EventStateNew
	}
}

func (Event) DashboardFilterFields() []filter.Field {
	return []filter.Field{
		{Name: FilterZone, Column: "monitoring_events.zone_name"},
		{Name: FilterMonitoringService, Column: "monitoring_events.monitoring_service_name"},
		{Name: FilterHost, Column: "monitoring_events.host_name"},
		{Name: FilterCheck, Column: "monitoring_events.check_name"},
		{Name: FilterGroup, Column: "host_groups.name", Relation: &filter.Relation{
			From:  "host_group_mappings JOIN host_groups ON host_groups.id = host_group_mappings.group_id",
			Where: "host_group_mappings.host_id = monitoring_events.host_id",
		}},
	}
}

// EventStream is one frame of the websocket event stream.
type EventStream struct {
	Now    time.Time `json:"now"`
	Events []Event   `json:"events"`
}

// CanonicalEvent is a backend record decoded into backend independent form.
type CanonicalEvent struct {
	HostName    string      `json:"host_name"`
	CheckName   string      `json:"check_name"`
	Status      EventStatus `json:"status"`
	Command     string      `json:"command,omitempty"`
	Output      string      `json:"output,omitempty"`
	Occurrences int         `json:"occurrences"`
	Interval    int         `json:"interval,omitempty"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
	Raw         string      `json:"-"`
}

func (c CanonicalEvent) Key() EventKey {
	return EventKey{HostName: c.HostName, CheckName: c.CheckName}
}
