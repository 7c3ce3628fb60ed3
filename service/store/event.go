package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/filter"
)

// Resolved narrows events to resolved or open ones.
func Resolved(resolved bool) filter.Predicate {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("monitoring_events.resolved = ?", resolved)
	}
}

// ForService narrows events to one monitoring service.
func ForService(serviceID string) filter.Predicate {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("monitoring_events.monitoring_service_id = ?", serviceID)
	}
}

// ListEvents returns the cached events matching every predicate.
func (s *Store) ListEvents(ctx context.Context, preds ...filter.Predicate) ([]model.Event, error) {
	var events []model.Event
	err := s.db.WithContext(ctx).Model(&model.Event{}).
		Scopes(filter.Scopes(preds...)...).
		Order("monitoring_events.host_name, monitoring_events.check_name, monitoring_events.created_at").
		Find(&events).Error
	return events, classify(err)
}
