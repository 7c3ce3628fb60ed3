package mygin

import (
	"github.com/gin-gonic/gin"

	"github.com/opsyhq/opsy/model"
)

type ErrInfo struct {
	// Code is the HTTP status.
	Code int
	// APICode is the model.ApiError* code of the envelope.
	APICode uint64
	Msg     string
}

func ShowErrorPage(c *gin.Context, i ErrInfo) {
	code := i.APICode
	if code == 0 {
		code = model.ApiErrorUnknown
	}
	c.AbortWithStatusJSON(i.Code, model.Response{
		Code:    code,
		Message: i.Msg,
	})
}
