package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsyhq/opsy/model"
)

// ErrUnknownFilter is returned for a dashboard filter on an unknown entity.
var ErrUnknownFilter = fmt.Errorf("store: unknown dashboard filter, expected one of %s",
	strings.Join(model.DashboardFilterNames, ", "))

// CreateDashboard stores d with its filters.
func (s *Store) CreateDashboard(ctx context.Context, d *model.Dashboard) error {
	for _, f := range d.Filters {
		if !model.IsDashboardFilterName(f.Entity) {
			return fmt.Errorf("%w: %q", ErrUnknownFilter, f.Entity)
		}
	}
	return classify(s.db.WithContext(ctx).Create(d).Error)
}

// Dashboard loads a dashboard by id or by name.
func (s *Store) Dashboard(ctx context.Context, idOrName string) (*model.Dashboard, error) {
	var d model.Dashboard
	err := s.db.WithContext(ctx).Preload("Filters", orderFilters).
		Where("id = ? OR name = ?", idOrName, idOrName).
		First(&d).Error
	if err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

func (s *Store) ListDashboards(ctx context.Context) ([]model.Dashboard, error) {
	var dashboards []model.Dashboard
	err := s.db.WithContext(ctx).Preload("Filters", orderFilters).Order("name").Find(&dashboards).Error
	return dashboards, classify(err)
}

func orderFilters(db *gorm.DB) *gorm.DB {
	return db.Order("entity")
}

// SetDashboardFilter sets the filter string of one entity. An empty string
// removes the filter.
func (s *Store) SetDashboardFilter(ctx context.Context, dashboardID, entity, filters string) error {
	if !model.IsDashboardFilterName(entity) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, entity)
	}
	db := s.db.WithContext(ctx)
	if strings.TrimSpace(filters) == "" {
		return classify(db.Where("dashboard_id = ? AND entity = ?", dashboardID, entity).
			Delete(&model.DashboardFilter{}).Error)
	}
	f := model.DashboardFilter{DashboardID: dashboardID, Entity: entity, Filters: filters}
	return classify(db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dashboard_id"}, {Name: "entity"}},
		DoUpdates: clause.AssignmentColumns([]string{"filters", "updated_at"}),
	}).Create(&f).Error)
}

// DeleteDashboard removes a dashboard and its filters.
func (s *Store) DeleteDashboard(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx *Tx) error {
		if err := tx.db.Where("dashboard_id = ?", id).Delete(&model.DashboardFilter{}).Error; err != nil {
			return err
		}
		result := tx.db.Where("id = ?", id).Delete(&model.Dashboard{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DashboardFilters converts a form map into filter rows in a stable order.
func DashboardFilters(filters map[string]string) []model.DashboardFilter {
	entities := make([]string, 0, len(filters))
	for entity, f := range filters {
		if strings.TrimSpace(f) != "" {
			entities = append(entities, entity)
		}
	}
	sort.Strings(entities)
	out := make([]model.DashboardFilter, 0, len(entities))
	for _, entity := range entities {
		out = append(out, model.DashboardFilter{Entity: entity, Filters: filters[entity]})
	}
	return out
}
