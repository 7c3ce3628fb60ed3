package model

import "github.com/opsyhq/opsy/pkg/filter"

// Zone, Host and Group belong to the inventory. Polling only reads them.

type Zone struct {
	Common
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description,omitempty"`
}

type Host struct {
	Common
	Name   string  `gorm:"uniqueIndex;not null" json:"name"`
	ZoneID *string `gorm:"size:36" json:"zone_id,omitempty"`
	Zone   *Zone   `json:"zone,omitempty"`
	Groups []Group `gorm:"many2many:host_group_mappings" json:"groups,omitempty"`
}

// Group is stored as host_groups, GROUPS being an SQL keyword.
type Group struct {
	Common
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description,omitempty"`
}

func (Group) TableName() string {
	return "host_groups"
}

// HostRef is what event reconciliation needs to know about a host.
type HostRef struct {
	ID   string
	Name string
}

func (Host) DashboardFilterFields() []filter.Field {
	return []filter.Field{
		{Name: FilterZone, Column: "zones.name", Relation: &filter.Relation{
			From:  "zones",
			Where: "zones.id = hosts.zone_id",
		}},
		{Name: FilterHost, Column: "hosts.name"},
		{Name: FilterGroup, Column: "host_groups.name", Relation: &filter.Relation{
			From:  "host_group_mappings JOIN host_groups ON host_groups.id = host_group_mappings.group_id",
			Where: "host_group_mappings.host_id = hosts.id",
		}},
	}
}
