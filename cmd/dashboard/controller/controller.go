package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/mygin"
	"github.com/opsyhq/opsy/service/backend"
	"github.com/opsyhq/opsy/service/scheduler"
	"github.com/opsyhq/opsy/service/singleton"
	"github.com/opsyhq/opsy/service/store"
)

var requestGroup singleflight.Group

// ServeWeb builds the HTTP API on top of the singleton services.
func ServeWeb() http.Handler {
	if singleton.Conf.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mygin.Recovery(), mygin.RequestLogger(), mygin.RecordPath)
	if singleton.Conf.Debug {
		pprof.Register(r)
	}
	routers(r)
	return r
}

func routers(r *gin.Engine) {
	api := r.Group("api/v1")
	api.GET("/version", commonHandler(getVersion))

	api.GET("/service", listHandler(listService))
	api.POST("/service", commonHandler(createService))
	api.GET("/service/:id", commonHandler(getService))
	api.PATCH("/service/:id", commonHandler(updateService))
	api.DELETE("/service/:id", commonHandler(deleteService))
	api.POST("/service/:id/poll", commonHandler(pollService))

	api.GET("/event", listHandler(listEvent))
	api.GET("/host", listHandler(listHost))
	api.GET("/ws/event", commonHandler(eventStream))

	api.GET("/dashboard", listHandler(listDashboard))
	api.POST("/dashboard", commonHandler(createDashboard))
	api.GET("/dashboard/:id", commonHandler(getDashboard))
	api.PATCH("/dashboard/:id/filter", commonHandler(setDashboardFilter))
	api.DELETE("/dashboard/:id", commonHandler(deleteDashboard))

	r.NoRoute(func(c *gin.Context) {
		mygin.ShowErrorPage(c, mygin.ErrInfo{
			Code:    http.StatusNotFound,
			APICode: model.ApiErrorNotFound,
			Msg:     "route not found",
		})
	})
}

type handlerFunc[T any] func(c *gin.Context) (T, error)

func commonHandler[T any](handler handlerFunc[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := handler(c)
		if err != nil {
			var wsErr *wsError
			if errors.As(err, &wsErr) {
				return
			}
			showError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.Response{Result: data})
	}
}

// listHandler renders a nil list as [] rather than omitting it.
func listHandler[S ~[]E, E any](handler handlerFunc[S]) gin.HandlerFunc {
	return commonHandler(func(c *gin.Context) (S, error) {
		data, err := handler(c)
		if err == nil && data == nil {
			data = S{}
		}
		return data, err
	})
}

func showError(c *gin.Context, err error) {
	info := mygin.ErrInfo{
		Code:    http.StatusInternalServerError,
		APICode: model.ApiErrorUnknown,
		Msg:     err.Error(),
	}
	var invalid *invalidError
	var gormErr *gormError
	switch {
	case errors.Is(err, store.ErrNotFound):
		info.Code, info.APICode = http.StatusNotFound, model.ApiErrorNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, scheduler.ErrInFlight):
		info.Code, info.APICode = http.StatusConflict, model.ApiErrorConflict
	case errors.As(err, &invalid),
		errors.Is(err, backend.ErrUnknownBackend),
		errors.Is(err, backend.ErrInvalidConfig),
		errors.Is(err, store.ErrUnknownFilter):
		info.Code, info.APICode = http.StatusBadRequest, model.ApiErrorBadRequest
	case errors.As(err, &gormErr):
		info.Msg = "database error"
	}
	_ = c.Error(err)
	mygin.ShowErrorPage(c, info)
}

type gormError struct {
	msg string
	a   []interface{}
}

func newGormError(format string, args ...interface{}) error {
	return &gormError{
		msg: format,
		a:   args,
	}
}

func (ge *gormError) Error() string {
	return fmt.Sprintf(ge.msg, ge.a...)
}

func (ge *gormError) Unwrap() error {
	for _, a := range ge.a {
		if err, ok := a.(error); ok {
			return err
		}
	}
	return nil
}

type invalidError struct {
	err error
}

func newInvalidError(format string, args ...interface{}) error {
	return &invalidError{err: fmt.Errorf(format, args...)}
}

func (ie *invalidError) Error() string {
	return ie.err.Error()
}

func (ie *invalidError) Unwrap() error {
	return ie.err
}

func getVersion(c *gin.Context) (gin.H, error) {
	return gin.H{
		"version":  model.Version,
		"backends": backend.Kinds(),
	}, nil
}
