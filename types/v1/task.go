package types

import (
	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	"github.com/locey/TaskAVS/service/reconcile"
)

type CreateTaskReq struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Deadline    int      `json:"deadline" validate:"required,gt=0,lte=365"` // days
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
}

type ApplyTaskReq struct {
	RwaTokenAddress string `json:"rwa_token_address" validate:"required,eth_addr"`
}

type TaskListResp struct {
	Result []avs.TaskTemplate `json:"result"`
	Count  int                `json:"count"`
}

type ApplyTaskResp struct {
	Message string        `json:"message"`
	Task    *avs.UserTask `json:"task"`
}

type UserTaskListResp struct {
	Result []reconcile.ApplicationView `json:"result"`
	Count  int                         `json:"count"`
}
