package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/filter"
	"github.com/opsyhq/opsy/service/backend"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "opsy.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createService(t *testing.T, s *Store, name string, zone *model.Zone) *model.MonitoringService {
	svc := &model.MonitoringService{
		Name:          name,
		BackendKind:   model.BackendSensu,
		BackendConfig: model.BackendConfig{Host: name + ".local"},
		Enabled:       true,
	}
	if zone != nil {
		svc.ZoneID = &zone.ID
	}
	require.NoError(t, s.CreateMonitoringService(context.Background(), svc))
	return svc
}

// createInventory builds three zones holding one prometheus and one consul
// host each. The prometheus hosts form the prom_nodes group.
func createInventory(t *testing.T, s *Store) map[string]*model.Zone {
	db := s.DB()
	promNodes := model.Group{Name: "prom_nodes"}
	require.NoError(t, db.Create(&promNodes).Error)

	zones := make(map[string]*model.Zone)
	for _, name := range []string{"west", "central", "east"} {
		zone := &model.Zone{Name: name}
		require.NoError(t, db.Create(zone).Error)
		zones[name] = zone
		require.NoError(t, db.Create(&model.Host{Name: name + "prom", ZoneID: &zone.ID, Groups: []model.Group{promNodes}}).Error)
		require.NoError(t, db.Create(&model.Host{Name: name + "consul", ZoneID: &zone.ID}).Error)
	}
	return zones
}

func createEvents(t *testing.T, s *Store, svc *model.MonitoringService, events ...model.Event) []model.Event {
	for i := range events {
		events[i].MonitoringServiceID = svc.ID
		events[i].MonitoringServiceName = svc.Name
		if events[i].State == "" {
			events[i].State = model.EventStateNew
		}
	}
	require.NoError(t, s.Transaction(context.Background(), func(tx *Tx) error {
		return tx.CreateEvents(events)
	}))
	return events
}

func TestCreateMonitoringService(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	svc := createService(t, s, "sensu-west", nil)
	assert.NotEmpty(t, svc.ID)
	assert.Equal(t, model.ServiceStatusNew, svc.Status)

	loaded, err := s.MonitoringService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "sensu-west.local", loaded.BackendConfig.Host)
	assert.Equal(t, 4567, loaded.BackendConfig.Port)
	assert.Equal(t, model.DefaultPollInterval, loaded.BackendConfig.Interval)

	err = s.CreateMonitoringService(ctx, &model.MonitoringService{
		Name:          "nagios",
		BackendKind:   "nagios",
		BackendConfig: model.BackendConfig{Host: "nagios.local"},
	})
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)

	disabled := &model.MonitoringService{Name: "off", BackendKind: model.BackendPrometheus, BackendConfig: model.BackendConfig{Host: "am"}}
	require.NoError(t, s.CreateMonitoringService(ctx, disabled))
	assert.Equal(t, model.ServiceStatusDisabled, disabled.Status)

	all, err := s.ListMonitoringServices(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	enabled, err := s.ListMonitoringServices(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, svc.ID, enabled[0].ID)

	disabled.Enabled = true
	require.NoError(t, s.UpdateMonitoringService(ctx, disabled))
	loaded, err = s.MonitoringService(ctx, disabled.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Enabled)
	assert.Equal(t, model.ServiceStatusNew, loaded.Status)

	err = s.CreateMonitoringService(ctx, &model.MonitoringService{Name: "sensu-west", BackendKind: model.BackendSensu, BackendConfig: model.BackendConfig{Host: "x"}})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.MonitoringService(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnresolvedEventIndex(t *testing.T) {
	s := openTestStore(t)
	svc := createService(t, s, "sensu", nil)
	now := time.Now()

	createEvents(t, s, svc,
		model.Event{HostName: "h1", CheckName: "c1", Resolved: true, State: model.EventStateResolved, ResolvedAt: &now},
		model.Event{HostName: "h1", CheckName: "c1", Resolved: true, State: model.EventStateResolved, ResolvedAt: &now},
		model.Event{HostName: "h1", CheckName: "c1"},
	)

	err := s.Transaction(context.Background(), func(tx *Tx) error {
		return tx.CreateEvents([]model.Event{{MonitoringServiceID: svc.ID, HostName: "h1", CheckName: "c1"}})
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, IsConflict(err))

	var count int64
	require.NoError(t, s.DB().Model(&model.Event{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestTransactionConflict(t *testing.T) {
	s := openTestStore(t)
	svc := createService(t, s, "sensu", nil)

	require.NoError(t, s.DB().Callback().Create().Before("gorm:create").Register("test:busy", func(db *gorm.DB) {
		if _, ok := db.Statement.Model.(*[]model.Event); ok {
			_ = db.AddError(sqlite3.Error{Code: sqlite3.ErrBusy})
		}
	}))

	err := s.Transaction(context.Background(), func(tx *Tx) error {
		if err := tx.ResolveEvents(svc.ID, []string{"x"}, time.Now()); err != nil {
			return err
		}
		return tx.CreateEvents([]model.Event{{MonitoringServiceID: svc.ID, HostName: "h", CheckName: "c"}})
	})
	require.ErrorIs(t, err, ErrConflict)
	var se sqlite3.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sqlite3.ErrBusy, se.Code)

	assert.False(t, IsConflict(errors.New("disk I/O error")))
	assert.False(t, IsConflict(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}))
	assert.True(t, IsConflict(sqlite3.Error{Code: sqlite3.ErrLocked}))
}

func TestDeleteMonitoringServiceCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	keep := createService(t, s, "keep", nil)
	drop := createService(t, s, "drop", nil)
	createEvents(t, s, keep, model.Event{HostName: "h1", CheckName: "c1"})
	createEvents(t, s, drop, model.Event{HostName: "h1", CheckName: "c1"}, model.Event{HostName: "h2", CheckName: "c2"})

	require.NoError(t, s.DeleteMonitoringService(ctx, drop.ID))
	assert.ErrorIs(t, s.DeleteMonitoringService(ctx, drop.ID), ErrNotFound)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, keep.ID, events[0].MonitoringServiceID)
}

func TestUpdateServiceHealth(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	svc := createService(t, s, "sensu", nil)

	polled := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpdateServiceHealth(ctx, svc.ID, model.ServiceStatusCritical, "connection refused", polled))

	loaded, err := s.MonitoringService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusCritical, loaded.Status)
	assert.Equal(t, "connection refused", loaded.StatusMessage)
	require.NotNil(t, loaded.LastPollTime)
	assert.True(t, polled.Equal(*loaded.LastPollTime))
	// the config blob is untouched by health updates
	assert.Equal(t, "sensu.local", loaded.BackendConfig.Host)
}

func TestLookupHostByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createInventory(t, s)

	ref, err := s.LookupHostByName(ctx, "westprom")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "westprom", ref.Name)
	assert.NotEmpty(t, ref.ID)

	ref, err = s.LookupHostByName(ctx, "WESTPROM")
	require.NoError(t, err)
	assert.Nil(t, ref)

	ref, err = s.LookupHostByName(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func hostNames(hosts []model.Host) []string {
	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		names = append(names, h.Name)
	}
	return names
}

func TestListHostsWithFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createInventory(t, s)

	fields := model.Host{}.DashboardFilterFields()
	zone, host, group := fields[0], fields[1], fields[2]

	cases := []struct {
		field   filter.Field
		filters string
		want    []string
	}{
		{zone, "east,west", []string{"eastconsul", "eastprom", "westconsul", "westprom"}},
		{zone, "!west,!east", []string{"centralconsul", "centralprom"}},
		{zone, "*st", []string{"eastconsul", "eastprom", "westconsul", "westprom"}},
		{zone, "!*st", []string{"centralconsul", "centralprom"}},
		{group, "prom_nodes", []string{"centralprom", "eastprom", "westprom"}},
		{group, "!prom_nodes", []string{"centralconsul", "eastconsul", "westconsul"}},
		{group, "prom*", []string{"centralprom", "eastprom", "westprom"}},
		{group, "!prom*", []string{"centralconsul", "eastconsul", "westconsul"}},
		{host, "*consul,!east*", []string{"centralconsul", "westconsul"}},
	}
	for _, c := range cases {
		hosts, err := s.ListHosts(ctx, filter.Compile(c.filters).Scope(c.field))
		require.NoError(t, err)
		assert.Equal(t, c.want, hostNames(hosts), "%s=%s", c.field.Name, c.filters)
	}

	hosts, err := s.ListHosts(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 6)
	assert.NotNil(t, hosts[0].Zone)
}

func TestListMonitoringServicesWithFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	zones := createInventory(t, s)
	createService(t, s, "sensu-west", zones["west"])
	createService(t, s, "sensu-east", zones["east"])
	createService(t, s, "prom-global", nil)

	fields := model.MonitoringService{}.DashboardFilterFields()
	zone, name := fields[0], fields[1]

	cases := []struct {
		field   filter.Field
		filters string
		want    []string
	}{
		{zone, "west", []string{"sensu-west"}},
		{zone, "!west", []string{"prom-global", "sensu-east"}},
		{zone, "*st", []string{"sensu-east", "sensu-west"}},
		{name, "sensu-*", []string{"sensu-east", "sensu-west"}},
		{name, "!sensu-*", []string{"prom-global"}},
	}
	for _, c := range cases {
		services, err := s.ListMonitoringServices(ctx, false, filter.Compile(c.filters).Scope(c.field))
		require.NoError(t, err)
		names := make([]string, 0, len(services))
		for _, svc := range services {
			names = append(names, svc.Name)
		}
		assert.Equal(t, c.want, names, "%s=%s", c.field.Name, c.filters)
	}

	services, err := s.ListMonitoringServices(ctx, true, filter.Compile("east").Scope(zone))
	require.NoError(t, err)
	require.Len(t, services, 1)
	require.NotNil(t, services[0].Zone)
	assert.Equal(t, "east", services[0].Zone.Name)
}

func TestDashboards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	zones := createInventory(t, s)

	d := &model.Dashboard{
		Name:    "west-prom",
		Enabled: true,
		Filters: DashboardFilters(map[string]string{"zone": "west", "group": "prom*", "check": " "}),
	}
	require.NoError(t, s.CreateDashboard(ctx, d))
	require.Len(t, d.Filters, 2)

	loaded, err := s.Dashboard(ctx, "west-prom")
	require.NoError(t, err)
	assert.Equal(t, d.ID, loaded.ID)
	assert.Equal(t, "west", loaded.Filter(model.FilterZone))
	assert.Equal(t, "prom*", loaded.Filter(model.FilterGroup))

	hosts, err := s.ListHosts(ctx, loaded.Predicates(model.Host{})...)
	require.NoError(t, err)
	assert.Equal(t, []string{"westprom"}, hostNames(hosts))

	// events carry denormalized zone and service names
	west := createService(t, s, "sensu-west", zones["west"])
	east := createService(t, s, "sensu-east", zones["east"])
	westHost, err := s.LookupHostByName(ctx, "westprom")
	require.NoError(t, err)
	createEvents(t, s, west,
		model.Event{ZoneName: "west", HostName: "westprom", HostID: &westHost.ID, CheckName: "disk"},
		model.Event{ZoneName: "west", HostName: "westconsul", CheckName: "disk"},
	)
	createEvents(t, s, east, model.Event{ZoneName: "east", HostName: "eastprom", CheckName: "disk"})

	events, err := s.ListEvents(ctx, loaded.Predicates(model.Event{})...)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "westprom", events[0].HostName)

	require.NoError(t, s.SetDashboardFilter(ctx, d.ID, model.FilterGroup, ""))
	require.NoError(t, s.SetDashboardFilter(ctx, d.ID, model.FilterZone, "west,east"))
	require.NoError(t, s.SetDashboardFilter(ctx, d.ID, model.FilterMonitoringService, "!sensu-east"))
	assert.ErrorIs(t, s.SetDashboardFilter(ctx, d.ID, "client", "x"), ErrUnknownFilter)

	loaded, err = s.Dashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Filters, 2)
	events, err = s.ListEvents(ctx, loaded.Predicates(model.Event{})...)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.ListEvents(ctx, append(loaded.Predicates(model.Event{}), Resolved(true))...)
	require.NoError(t, err)
	assert.Empty(t, events)

	err = s.CreateDashboard(ctx, &model.Dashboard{Name: "bad", Filters: []model.DashboardFilter{{Entity: "client", Filters: "x"}}})
	assert.ErrorIs(t, err, ErrUnknownFilter)

	dashboards, err := s.ListDashboards(ctx)
	require.NoError(t, err)
	assert.Len(t, dashboards, 1)

	require.NoError(t, s.DeleteDashboard(ctx, d.ID))
	_, err = s.Dashboard(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	var filters int64
	require.NoError(t, s.DB().Model(&model.DashboardFilter{}).Count(&filters).Error)
	assert.Zero(t, filters)
}
