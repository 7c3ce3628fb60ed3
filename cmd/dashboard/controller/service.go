package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/service/singleton"
	"github.com/opsyhq/opsy/service/store"
)

const redactedPassword = "********"

// List monitoring services
// @Summary List monitoring services
// @Description Query parameters zone and monitoring_service take filter
// @Description expressions, dashboard applies the filters of a stored dashboard.
// @Produce json
// @Success 200 {object} model.Response
// @Router /service [get]
func listService(c *gin.Context) ([]model.MonitoringService, error) {
	preds, err := queryPredicates(c, model.MonitoringService{})
	if err != nil {
		return nil, err
	}
	res, err, _ := requestGroup.Do("list-service::"+c.Request.URL.RawQuery, func() (interface{}, error) {
		services, err := singleton.Store.ListMonitoringServices(c.Request.Context(), false, preds...)
		if err != nil {
			return nil, err
		}
		for i := range services {
			redact(&services[i])
		}
		return services, nil
	})
	if err != nil {
		return nil, newGormError("%v", err)
	}
	return res.([]model.MonitoringService), nil
}

func getService(c *gin.Context) (*model.MonitoringService, error) {
	svc, err := singleton.Store.MonitoringService(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, newGormError("%v", err)
	}
	redact(svc)
	return svc, nil
}

// Create monitoring service
// @Summary Create monitoring service
// @Accept json
// @param request body model.MonitoringServiceForm true "Monitoring Service Request"
// @Produce json
// @Success 200 {object} model.Response
// @Router /service [post]
func createService(c *gin.Context) (string, error) {
	var sf model.MonitoringServiceForm
	if err := c.ShouldBindJSON(&sf); err != nil {
		return "", newInvalidError("%v", err)
	}

	var m model.MonitoringService
	if err := applyServiceForm(&m, &sf); err != nil {
		return "", err
	}
	if err := singleton.Store.CreateMonitoringService(c.Request.Context(), &m); err != nil {
		return "", newGormError("%v", err)
	}
	singleton.Scheduler.OnRefreshOrAddService(&m)
	return m.ID, nil
}

// Update monitoring service
// @Summary Update monitoring service
// @Accept json
// @param id path string true "Monitoring Service ID"
// @param request body model.MonitoringServiceForm true "Monitoring Service Request"
// @Produce json
// @Success 200 {object} model.Response
// @Router /service/{id} [patch]
func updateService(c *gin.Context) (any, error) {
	var sf model.MonitoringServiceForm
	if err := c.ShouldBindJSON(&sf); err != nil {
		return nil, newInvalidError("%v", err)
	}
	m, err := singleton.Store.MonitoringService(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, newGormError("%v", err)
	}
	password := m.BackendConfig.Password
	m.BackendConfig = model.BackendConfig{}
	if err := applyServiceForm(m, &sf); err != nil {
		return nil, err
	}
	// an omitted or redacted password keeps the stored one
	if sf.Password == "" || sf.Password == redactedPassword {
		m.BackendConfig.Password = password
	}
	if err := singleton.Store.UpdateMonitoringService(c.Request.Context(), m); err != nil {
		return nil, newGormError("%v", err)
	}
	singleton.Scheduler.OnRefreshOrAddService(m)
	return nil, nil
}

// Delete monitoring service
// @Summary Delete monitoring service and its events
// @param id path string true "Monitoring Service ID"
// @Produce json
// @Success 200 {object} model.Response
// @Router /service/{id} [delete]
func deleteService(c *gin.Context) (any, error) {
	id := c.Param("id")
	if err := singleton.Store.DeleteMonitoringService(c.Request.Context(), id); err != nil {
		return nil, newGormError("%v", err)
	}
	singleton.Scheduler.OnDeleteService(id)
	return nil, nil
}

// Poll monitoring service
// @Summary Run one poll cycle of a monitoring service right away
// @param id path string true "Monitoring Service ID"
// @Produce json
// @Success 200 {object} model.Response
// @Router /service/{id}/poll [post]
func pollService(c *gin.Context) (*model.PollResponse, error) {
	outcome, err := singleton.Scheduler.Trigger(c.Param("id"))
	if err != nil {
		return nil, err
	}
	if errors.Is(outcome.Err, store.ErrNotFound) {
		return nil, outcome.Err
	}
	res := &model.PollResponse{
		OK:      outcome.OK,
		Kind:    string(outcome.Kind),
		Skipped: outcome.Skipped,
	}
	if outcome.Err != nil {
		res.Error = outcome.Err.Error()
	}
	if outcome.Result != nil {
		res.Resolved = outcome.Result.Resolved
		res.Updated = outcome.Result.Updated
		res.Inserted = outcome.Result.Inserted
	}
	return res, nil
}

func applyServiceForm(m *model.MonitoringService, sf *model.MonitoringServiceForm) error {
	if err := copier.Copy(&m.BackendConfig, sf); err != nil {
		return newInvalidError("%v", err)
	}
	m.Name = sf.Name
	m.ZoneID = sf.ZoneID
	m.BackendKind = model.BackendKind(sf.Backend)
	m.Enabled = sf.Enabled
	m.BackendConfig.VerifySSL = sf.VerifySSL == nil || *sf.VerifySSL
	if m.BackendConfig.Interval <= 0 && singleton.Conf != nil {
		m.BackendConfig.Interval = singleton.Conf.Poll.DefaultInterval
	}
	return nil
}

func redact(svc *model.MonitoringService) {
	if svc.BackendConfig.Password != "" {
		svc.BackendConfig.Password = redactedPassword
	}
}
