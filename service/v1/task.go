package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	"github.com/locey/TaskAVS/service/svc"
	"github.com/locey/TaskAVS/types/v1"
)

func GetTasks(ctx context.Context, svcCtx *svc.ServerCtx) (*types.TaskListResp, error) {
	tasks, err := svcCtx.Dao.ListTasks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed on get tasks")
	}
	return &types.TaskListResp{Result: tasks, Count: len(tasks)}, nil
}

func CreateTask(ctx context.Context, svcCtx *svc.ServerCtx, req types.CreateTaskReq) (*avs.TaskTemplate, error) {
	task := &avs.TaskTemplate{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Tags:        req.Tags,
	}
	if err := svcCtx.Dao.CreateTask(ctx, task); err != nil {
		return nil, errors.Wrap(err, "failed on create task")
	}
	return task, nil
}

func ApplyTask(ctx context.Context, svcCtx *svc.ServerCtx, taskID, userID string, req types.ApplyTaskReq) (*types.ApplyTaskResp, error) {
	userTask, err := svcCtx.Engine.ApplyForTask(ctx, taskID, userID, req.RwaTokenAddress)
	if err != nil {
		return nil, err
	}
	return &types.ApplyTaskResp{
		Message: "Task application submitted",
		Task:    userTask,
	}, nil
}

func GetUserTasks(ctx context.Context, svcCtx *svc.ServerCtx, userID string) (*types.UserTaskListResp, error) {
	views, err := svcCtx.Engine.ListApplications(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &types.UserTaskListResp{Result: views, Count: len(views)}, nil
}
