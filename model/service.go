package model

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/opsyhq/opsy/pkg/filter"
	"github.com/opsyhq/opsy/pkg/utils"
)

const (
	DefaultPollInterval   = 60
	DefaultRequestTimeout = 30
)

type BackendKind string

const (
	BackendSensu      BackendKind = "sensu"
	BackendPrometheus BackendKind = "prometheus"
)

// ServiceStatus is the health derived from the last poll cycle.
type ServiceStatus string

const (
	ServiceStatusNew      ServiceStatus = "new"
	ServiceStatusOK       ServiceStatus = "ok"
	ServiceStatusWarning  ServiceStatus = "warning"
	ServiceStatusCritical ServiceStatus = "critical"
	ServiceStatusDisabled ServiceStatus = "disabled"
)

// BackendConfig holds the connection settings of a monitoring backend.
// Timeout and Interval are in seconds.
type BackendConfig struct {
	Host      string `json:"host"`
	Protocol  string `json:"protocol"`
	Port      int    `json:"port"`
	Path      string `json:"path"`
	Timeout   int    `json:"timeout"`
	Interval  int    `json:"interval"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	VerifySSL bool   `json:"verify_ssl"`
}

// BaseURL renders protocol://host:port/path.
func (c BackendConfig) BaseURL() string {
	protocol := c.Protocol
	if protocol == "" {
		protocol = "http"
	}
	hostport := c.Host
	if c.Port > 0 {
		hostport = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	return utils.JoinURL(protocol+"://"+hostport, c.Path)
}

// RequestTimeout is the deadline applied to each backend request.
func (c BackendConfig) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultRequestTimeout * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

type MonitoringService struct {
	Common
	Name             string        `gorm:"uniqueIndex;not null" json:"name"`
	ZoneID           *string       `gorm:"size:36" json:"zone_id,omitempty"`
	Zone             *Zone         `json:"zone,omitempty"`
	BackendKind      BackendKind   `gorm:"not null" json:"backend"`
	BackendConfigRaw string        `json:"-"`
	BackendConfig    BackendConfig `gorm:"-" json:"config"`
	Enabled          bool          `json:"enabled"`
	Status           ServiceStatus `json:"status"`
	StatusMessage    string        `json:"status_message"`
	LastPollTime     *time.Time    `json:"last_poll_time,omitempty"`

	CronJobID cron.EntryID `gorm:"-" json:"-"`
}

// Interval returns the poll interval, 60 seconds when unset.
func (m *MonitoringService) Interval() time.Duration {
	if m.BackendConfig.Interval <= 0 {
		return DefaultPollInterval * time.Second
	}
	return time.Duration(m.BackendConfig.Interval) * time.Second
}

// CronSpec returns the cron expression matching the poll interval.
func (m *MonitoringService) CronSpec() string {
	return fmt.Sprintf("@every %ds", int(m.Interval().Seconds()))
}

func (m *MonitoringService) BeforeSave(tx *gorm.DB) error {
	if m.Status == "" {
		m.Status = ServiceStatusNew
	}
	data, err := utils.Json.Marshal(m.BackendConfig)
	if err != nil {
		return err
	}
	m.BackendConfigRaw = string(data)
	return nil
}

func (m *MonitoringService) AfterFind(tx *gorm.DB) error {
	if m.BackendConfigRaw == "" {
		return nil
	}
	return utils.Json.Unmarshal([]byte(m.BackendConfigRaw), &m.BackendConfig)
}

func (MonitoringService) DashboardFilterFields() []filter.Field {
	return []filter.Field{
		{Name: FilterZone, Column: "zones.name", Relation: &filter.Relation{
			From:  "zones",
			Where: "zones.id = monitoring_services.zone_id",
		}},
		{Name: FilterMonitoringService, Column: "monitoring_services.name"},
	}
}
