package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/filter"
	"github.com/opsyhq/opsy/service/backend"
)

// CreateMonitoringService validates the backend kind, fills backend defaults
// and stores svc. An unknown kind fails with backend.ErrUnknownBackend.
func (s *Store) CreateMonitoringService(ctx context.Context, svc *model.MonitoringService) error {
	if err := backend.Configure(svc); err != nil {
		return err
	}
	svc.Status = model.ServiceStatusNew
	if !svc.Enabled {
		svc.Status = model.ServiceStatusDisabled
	}
	return classify(s.db.WithContext(ctx).Omit(clause.Associations).Create(svc).Error)
}

func (s *Store) UpdateMonitoringService(ctx context.Context, svc *model.MonitoringService) error {
	if err := backend.Configure(svc); err != nil {
		return err
	}
	if !svc.Enabled {
		svc.Status = model.ServiceStatusDisabled
	} else if svc.Status == model.ServiceStatusDisabled {
		svc.Status = model.ServiceStatusNew
	}
	return classify(s.db.WithContext(ctx).Omit(clause.Associations).Save(svc).Error)
}

// DeleteMonitoringService removes a service together with all its events.
func (s *Store) DeleteMonitoringService(ctx context.Context, id string) error {
	var events int64
	err := s.Transaction(ctx, func(tx *Tx) error {
		deleted := tx.db.Where("monitoring_service_id = ?", id).Delete(&model.Event{})
		if deleted.Error != nil {
			return deleted.Error
		}
		events = deleted.RowsAffected
		result := tx.db.Where("id = ?", id).Delete(&model.MonitoringService{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err == nil {
		s.log.Info().Str("service_id", id).Int64("events", events).Msg("monitoring service deleted")
	}
	return err
}

func (s *Store) MonitoringService(ctx context.Context, id string) (*model.MonitoringService, error) {
	return (&Tx{db: s.db.WithContext(ctx)}).MonitoringService(id)
}

func (s *Store) ListMonitoringServices(ctx context.Context, enabledOnly bool, preds ...filter.Predicate) ([]model.MonitoringService, error) {
	var services []model.MonitoringService
	db := s.db.WithContext(ctx).Model(&model.MonitoringService{}).
		Scopes(filter.Scopes(preds...)...).
		Preload("Zone")
	if enabledOnly {
		db = db.Where("monitoring_services.enabled = ?", true)
	}
	err := db.Order("monitoring_services.name").Find(&services).Error
	return services, classify(err)
}

// UpdateServiceHealth records the outcome of a poll cycle.
func (s *Store) UpdateServiceHealth(ctx context.Context, id string, status model.ServiceStatus, message string, polledAt time.Time) error {
	return classify(s.db.WithContext(ctx).Model(&model.MonitoringService{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":         status,
			"status_message": message,
			"last_poll_time": polledAt,
		}).Error)
}

// LookupHostByName resolves an inventory host by exact name, nil when unknown.
func (s *Store) LookupHostByName(ctx context.Context, name string) (*model.HostRef, error) {
	return lookupHostByName(s.db.WithContext(ctx), name)
}

func (s *Store) ListHosts(ctx context.Context, preds ...filter.Predicate) ([]model.Host, error) {
	var hosts []model.Host
	err := s.db.WithContext(ctx).Model(&model.Host{}).
		Scopes(filter.Scopes(preds...)...).
		Preload("Zone").Preload("Groups").
		Order("hosts.name").Find(&hosts).Error
	return hosts, classify(err)
}
