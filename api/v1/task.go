package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/locey/TaskAVS/api/middleware"
	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/kit/validator"
	"github.com/locey/TaskAVS/base/xhttp"
	"github.com/locey/TaskAVS/service/svc"
	"github.com/locey/TaskAVS/service/v1"
	"github.com/locey/TaskAVS/types/v1"
)

func GetTasksHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := service.GetTasks(c.Request.Context(), svcCtx)
		if err != nil {
			xhttp.Error(c, err)
			return
		}

		xhttp.OkJson(c, res)
	}
}

func CreateTaskHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := types.CreateTaskReq{}
		if err := c.ShouldBindJSON(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.Wrap(err, "invalid request body"))
			return
		}

		if err := validator.Verify(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.WithMsg("%s", err.Error()))
			return
		}

		res, err := service.CreateTask(c.Request.Context(), svcCtx, req)
		if err != nil {
			xhttp.Error(c, err)
			return
		}

		xhttp.OkJson(c, res)
	}
}

// ApplyTaskHandler applies the caller for the task in the path against the
// asset in the body.
func ApplyTaskHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Params.ByName("taskId")
		if taskID == "" {
			xhttp.Error(c, errcode.ErrInvalidInput.WithMsg("task id is required"))
			return
		}

		req := types.ApplyTaskReq{}
		if err := c.ShouldBindJSON(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.Wrap(err, "invalid request body"))
			return
		}
		if err := validator.Verify(&req); err != nil {
			xhttp.Error(c, errcode.ErrInvalidInput.WithMsg("%s", err.Error()))
			return
		}

		session := middleware.Session(c)
		res, err := service.ApplyTask(c.Request.Context(), svcCtx, taskID, session.UserID, req)
		if err != nil {
			xhttp.Error(c, err)
			return
		}

		xhttp.OkJson(c, res)
	}
}

func GetUserTasksHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := middleware.Session(c)
		res, err := service.GetUserTasks(c.Request.Context(), svcCtx, session.UserID)
		if err != nil {
			xhttp.Error(c, err)
			return
		}

		xhttp.OkJson(c, res)
	}
}
