package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/service/singleton"
)

// List hosts
// @Summary List inventory hosts
// @Description Query parameters zone, host and group take filter expressions,
// @Description dashboard applies the filters of a stored dashboard.
// @Produce json
// @Success 200 {object} model.Response
// @Router /host [get]
func listHost(c *gin.Context) ([]model.Host, error) {
	preds, err := queryPredicates(c, model.Host{})
	if err != nil {
		return nil, err
	}
	res, err, _ := requestGroup.Do("list-host::"+c.Request.URL.RawQuery, func() (interface{}, error) {
		return singleton.Store.ListHosts(c.Request.Context(), preds...)
	})
	if err != nil {
		return nil, newGormError("%v", err)
	}
	return res.([]model.Host), nil
}
