package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/service/singleton"
	"github.com/opsyhq/opsy/service/store"
)

// List dashboards
// @Summary List dashboards with their filters
// @Produce json
// @Success 200 {object} model.Response
// @Router /dashboard [get]
func listDashboard(c *gin.Context) ([]model.Dashboard, error) {
	res, err, _ := requestGroup.Do("list-dashboard", func() (interface{}, error) {
		return singleton.Store.ListDashboards(c.Request.Context())
	})
	if err != nil {
		return nil, newGormError("%v", err)
	}
	return res.([]model.Dashboard), nil
}

func getDashboard(c *gin.Context) (*model.Dashboard, error) {
	d, err := singleton.Store.Dashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, newGormError("%v", err)
	}
	return d, nil
}

// Create dashboard
// @Summary Create dashboard
// @Accept json
// @param request body model.DashboardForm true "Dashboard Request"
// @Produce json
// @Success 200 {object} model.Response
// @Router /dashboard [post]
func createDashboard(c *gin.Context) (string, error) {
	var df model.DashboardForm
	if err := c.ShouldBindJSON(&df); err != nil {
		return "", newInvalidError("%v", err)
	}
	d := model.Dashboard{
		Name:        df.Name,
		Description: df.Description,
		Enabled:     df.Enabled,
		Filters:     store.DashboardFilters(df.Filters),
	}
	if err := singleton.Store.CreateDashboard(c.Request.Context(), &d); err != nil {
		return "", newGormError("%v", err)
	}
	return d.ID, nil
}

type dashboardFilterForm struct {
	Entity  string `json:"entity" binding:"required"`
	Filters string `json:"filters"`
}

// Set dashboard filter
// @Summary Set or, with empty filters, remove the filter of one entity
// @Accept json
// @param id path string true "Dashboard ID"
// @Produce json
// @Success 200 {object} model.Response
// @Router /dashboard/{id}/filter [patch]
func setDashboardFilter(c *gin.Context) (*model.Dashboard, error) {
	var ff dashboardFilterForm
	if err := c.ShouldBindJSON(&ff); err != nil {
		return nil, newInvalidError("%v", err)
	}
	d, err := singleton.Store.Dashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, newGormError("%v", err)
	}
	if err := singleton.Store.SetDashboardFilter(c.Request.Context(), d.ID, ff.Entity, ff.Filters); err != nil {
		return nil, newGormError("%v", err)
	}
	return singleton.Store.Dashboard(c.Request.Context(), d.ID)
}

func deleteDashboard(c *gin.Context) (any, error) {
	if err := singleton.Store.DeleteDashboard(c.Request.Context(), c.Param("id")); err != nil {
		return nil, newGormError("%v", err)
	}
	return nil, nil
}
