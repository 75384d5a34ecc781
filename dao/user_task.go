package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
)

func (d *Dao) GetUserTask(c context.Context, identityID, taskID, assetAddress, chainID string) (*avs.UserTask, error) {
	var task avs.UserTask
	err := d.DB.WithContext(c).
		Where("identity_id = ? AND task_id = ? AND asset_address = ? AND chain_id = ?", identityID, taskID, assetAddress, chainID).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (d *Dao) GetUserTaskByID(c context.Context, id string) (*avs.UserTask, error) {
	return d.firstUserTask(c, "id = ?", id)
}

func (d *Dao) GetUserTaskByAvsTaskID(c context.Context, avsTaskID string) (*avs.UserTask, error) {
	return d.firstUserTask(c, "avs_task_id = ?", avsTaskID)
}

func (d *Dao) GetUserTaskByHash(c context.Context, taskHash string) (*avs.UserTask, error) {
	return d.firstUserTask(c, "avs_task_hash = ?", taskHash)
}

func (d *Dao) firstUserTask(c context.Context, query string, arg interface{}) (*avs.UserTask, error) {
	var task avs.UserTask
	// newest first: a reused tentative id must resolve to the latest application
	err := d.DB.WithContext(c).Where(query, arg).Order("created_at desc").First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (d *Dao) CreateUserTask(c context.Context, userTask *avs.UserTask) error {
	return d.DB.WithContext(c).Omit("Task").Create(userTask).Error
}

// CompareAndUpdateUserTask applies fields only if the row is still at version,
// bumping the version. It reports false when another writer got there first.
func (d *Dao) CompareAndUpdateUserTask(c context.Context, id string, version int64, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	res := d.DB.WithContext(c).Model(&avs.UserTask{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// GetUserTasksByIdentity returns an identity's applications newest first with
// their task template attached.
func (d *Dao) GetUserTasksByIdentity(c context.Context, identityID string) ([]avs.UserTask, error) {
	var tasks []avs.UserTask
	err := d.DB.WithContext(c).
		Preload("Task").
		Where("identity_id = ?", identityID).
		Order("created_at desc").
		Find(&tasks).Error
	return tasks, err
}

// GetDanglingUserTasks lists PENDING applications that never recorded a
// creation transaction, the records left behind by a crash mid submission.
func (d *Dao) GetDanglingUserTasks(c context.Context) ([]avs.UserTask, error) {
	var tasks []avs.UserTask
	err := d.DB.WithContext(c).
		Where("status = ? AND (task_creation_tx_hash = '' OR task_creation_tx_hash IS NULL)", avs.UserTaskStatusPending).
		Order("created_at asc").
		Find(&tasks).Error
	return tasks, err
}
