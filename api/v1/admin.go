package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/kit/validator"
	"github.com/locey/TaskAVS/base/xhttp"
	"github.com/locey/TaskAVS/service/svc"
	"github.com/locey/TaskAVS/service/v1"
	"github.com/locey/TaskAVS/types/v1"
)

func BanUserHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := types.BanReq{}
		if err := c.ShouldBindJSON(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.Wrap(err, "invalid request body"))
			return
		}
		if err := validator.Verify(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.WithMsg("%s", err.Error()))
			return
		}

		res, err := service.BanUser(c.Request.Context(), svcCtx, req)
		if err != nil {
			xhttp.Error(c, err)
			return
		}

		xhttp.OkJson(c, res)
	}
}

func UnbanUserHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := types.BanReq{}
		if err := c.ShouldBindJSON(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.Wrap(err, "invalid request body"))
			return
		}
		if err := validator.Verify(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.WithMsg("%s", err.Error()))
			return
		}

		res, err := service.UnbanUser(c.Request.Context(), svcCtx, req.Address)
		if err != nil {
			xhttp.Error(c, err)
			return
		}

		xhttp.OkJson(c, res)
	}
}
