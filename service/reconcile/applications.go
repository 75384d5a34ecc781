package reconcile

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/stores/gdb/avs"
)

// ApplicationView is an application with its task template and the seconds
// left until the on-chain deadline, nil while the deadline is unknown.
type ApplicationView struct {
	avs.UserTask
	TimeLeftSeconds *int64 `json:"time_left_seconds"`
}

// ListApplications returns identityID's applications, newest first.
func (e *Engine) ListApplications(ctx context.Context, identityID string) ([]ApplicationView, error) {
	if identityID == "" {
		return nil, errcode.ErrInvalidInput.WithMsg("user id is required")
	}
	if _, err := e.store.GetIdentityByID(ctx, identityID); err != nil {
		return nil, notFound(err, "user %s not found", identityID)
	}
	tasks, err := e.store.GetUserTasksByIdentity(ctx, identityID)
	if err != nil {
		return nil, errors.Wrap(err, "failed on get user tasks")
	}

	now := e.now()
	views := make([]ApplicationView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, ApplicationView{UserTask: t, TimeLeftSeconds: timeLeft(t.AvsDeadline, now)})
	}
	return views, nil
}

func timeLeft(deadline *time.Time, now time.Time) *int64 {
	if deadline == nil {
		return nil
	}
	secs := int64(deadline.Sub(now) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &secs
}
