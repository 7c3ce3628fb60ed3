package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/filter"
	"github.com/opsyhq/opsy/service/singleton"
	"github.com/opsyhq/opsy/service/store"
)

// List events
// @Summary List cached events
// @Description Query parameters zone, monitoring_service, host, check and
// @Description group take filter expressions, dashboard applies the filters
// @Description of a stored dashboard. resolved is true, false (default) or all.
// @Produce json
// @Success 200 {object} model.Response
// @Router /event [get]
func listEvent(c *gin.Context) ([]model.Event, error) {
	preds, err := queryPredicates(c, model.Event{})
	if err != nil {
		return nil, err
	}
	switch resolved := c.DefaultQuery("resolved", "false"); resolved {
	case "all":
	default:
		b, err := strconv.ParseBool(resolved)
		if err != nil {
			return nil, newInvalidError("resolved: expected true, false or all, got %q", resolved)
		}
		preds = append(preds, store.Resolved(b))
	}

	res, err, _ := requestGroup.Do("list-event::"+c.Request.URL.RawQuery, func() (interface{}, error) {
		return singleton.Store.ListEvents(c.Request.Context(), preds...)
	})
	if err != nil {
		return nil, newGormError("%v", err)
	}
	return res.([]model.Event), nil
}

// queryPredicates combines the filters of the dashboard named by the
// dashboard query parameter with the ad hoc filters given as parameters.
func queryPredicates(c *gin.Context, entity model.Filterable) ([]filter.Predicate, error) {
	compile := singleton.FilterCache.Compile
	var preds []filter.Predicate
	if idOrName := c.Query("dashboard"); idOrName != "" {
		d, err := singleton.Store.Dashboard(c.Request.Context(), idOrName)
		if err != nil {
			return nil, newGormError("%v", err)
		}
		preds = append(preds, d.PredicatesWith(compile, entity)...)
	}

	var adhoc model.Dashboard
	for _, name := range model.DashboardFilterNames {
		if v := c.Query(name); v != "" {
			adhoc.Filters = append(adhoc.Filters, model.DashboardFilter{Entity: name, Filters: v})
		}
	}
	return append(preds, adhoc.PredicatesWith(compile, entity)...), nil
}
