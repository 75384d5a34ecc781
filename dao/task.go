package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
)

func (d *Dao) GetTaskByID(c context.Context, taskId string) (*avs.TaskTemplate, error) {
	var task avs.TaskTemplate
	err := d.DB.WithContext(c).
		Table(avs.TaskTemplateTableName()).Where("id = ?", taskId).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (d *Dao) ListTasks(c context.Context) ([]avs.TaskTemplate, error) {
	var tasks []avs.TaskTemplate
	err := d.DB.WithContext(c).Order("created_at asc").Find(&tasks).Error
	return tasks, err
}

func (d *Dao) CreateTask(c context.Context, task *avs.TaskTemplate) error {
	return d.DB.WithContext(c).Create(task).Error
}

// ReplaceTasks clears the catalog and inserts tasks in one transaction.
func (d *Dao) ReplaceTasks(c context.Context, tasks []*avs.TaskTemplate) error {
	return d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&avs.TaskTemplate{}).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		return tx.CreateInBatches(tasks, 100).Error
	})
}
