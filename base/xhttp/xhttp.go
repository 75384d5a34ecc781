package xhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/logger/xzap"
)

type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "ok", Data: data})
}

// Error replies with the status of the error's kind; unknown errors become 500.
func Error(c *gin.Context, err error) {
	e := errcode.From(err)
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		xzap.WithContext(c.Request.Context()).Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, Response{Code: e.Code, Msg: e.Error()})
}
