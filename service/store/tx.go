package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsyhq/opsy/model"
)

// Tx is the view of the store inside one transaction. Every event operation
// is scoped by monitoring service.
type Tx struct {
	db *gorm.DB
}

func (tx *Tx) MonitoringService(id string) (*model.MonitoringService, error) {
	var svc model.MonitoringService
	if err := tx.db.Preload("Zone").Where("id = ?", id).First(&svc).Error; err != nil {
		return nil, classify(err)
	}
	return &svc, nil
}

// UnresolvedEvents returns the open events of a service.
func (tx *Tx) UnresolvedEvents(serviceID string) ([]model.Event, error) {
	var events []model.Event
	err := tx.db.Where("monitoring_service_id = ? AND resolved = ?", serviceID, false).
		Order("created_at, id").Find(&events).Error
	return events, classify(err)
}

// ResolveEvents closes the given open events of a service.
func (tx *Tx) ResolveEvents(serviceID string, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return classify(tx.db.Model(&model.Event{}).
		Where("monitoring_service_id = ? AND id IN ? AND resolved = ?", serviceID, ids, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"state":       model.EventStateResolved,
			"resolved_at": now,
		}).Error)
}

// SaveEvents updates existing events in place.
func (tx *Tx) SaveEvents(events []model.Event) error {
	for i := range events {
		if err := tx.db.Omit(clause.Associations).Save(&events[i]).Error; err != nil {
			return classify(err)
		}
	}
	return nil
}

// CreateEvents inserts new events, assigning their identities.
func (tx *Tx) CreateEvents(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	return classify(tx.db.Omit(clause.Associations).Create(&events).Error)
}

// LookupHostByName resolves an inventory host by exact name, nil when unknown.
func (tx *Tx) LookupHostByName(name string) (*model.HostRef, error) {
	return lookupHostByName(tx.db, name)
}

func lookupHostByName(db *gorm.DB, name string) (*model.HostRef, error) {
	if name == "" {
		return nil, nil
	}
	var hosts []model.Host
	if err := db.Select("id", "name").Where("name = ?", name).Limit(1).Find(&hosts).Error; err != nil {
		return nil, classify(err)
	}
	if len(hosts) == 0 {
		return nil, nil
	}
	return &model.HostRef{ID: hosts[0].ID, Name: hosts[0].Name}, nil
}
