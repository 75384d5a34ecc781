package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/locey/TaskAVS/service/svc"
)

type HealthResp struct {
	Status   string `json:"status"`
	Listener bool   `json:"listener"`
}

// HealthHandler reports 503 while the chain event listener is down.
func HealthHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		listener := svcCtx.Gateway != nil && svcCtx.Gateway.Healthy()
		if !listener {
			c.JSON(http.StatusServiceUnavailable, HealthResp{Status: "degraded", Listener: false})
			return
		}
		c.JSON(http.StatusOK, HealthResp{Status: "ok", Listener: true})
	}
}
