package reconcile

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	"github.com/locey/TaskAVS/contract"
	"github.com/locey/TaskAVS/dao"
	"github.com/locey/TaskAVS/service/metrics"
)

// HandleTaskCreated confirms the application the event belongs to. Errors
// are logged and counted, never returned: the gateway keeps delivering.
func (e *Engine) HandleTaskCreated(ctx context.Context, ev *contract.TaskCreatedEvent) {
	logger := xzap.WithContext(ctx).With(
		zap.String("task_id", ev.TaskID.String()),
		zap.String("task_hash", ev.TaskHash.Hex()),
		zap.String("tx_hash", ev.Meta.TxHash.Hex()))

	app, err := e.correlateCreated(ctx, ev)
	if err != nil {
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCreated, "failed").Inc()
		logger.Error("failed to look up application for TaskCreated", zap.Error(err))
		return
	}
	if app == nil {
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCreated, "unknown").Inc()
		logger.Warn("no application matches TaskCreated, dropped")
		return
	}

	now := e.now().UTC()
	var seen avs.UserTaskStatus
	changed, err := e.mutate(ctx, app.ID, func(t *avs.UserTask) map[string]interface{} {
		seen = t.Status
		return createdChanges(t, ev, now)
	})
	if err != nil {
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCreated, "failed").Inc()
		logger.Error("failed to apply TaskCreated", zap.String("application_id", app.ID), zap.Error(err))
		return
	}
	if seen == avs.UserTaskStatusRejected {
		// compensated after a receipt timeout, yet the transaction was mined
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCreated, "rejected_on_chain").Inc()
		logger.Warn("rejected application was created on chain, needs operator review",
			zap.String("application_id", app.ID), zap.Bool("filled", changed))
		return
	}
	if !changed {
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCreated, "duplicate").Inc()
		logger.Debug("TaskCreated already applied", zap.String("application_id", app.ID))
		return
	}
	metrics.ChainEvents.WithLabelValues(contract.EventTaskCreated, "applied").Inc()
	logger.Info("task confirmed on chain", zap.String("application_id", app.ID))
}

// correlateCreated finds the application a TaskCreated event belongs to. The
// task hash is authoritative; the tentative id stored at apply time only
// counts when its hash agrees, or when the event carries no hash at all.
func (e *Engine) correlateCreated(ctx context.Context, ev *contract.TaskCreatedEvent) (*avs.UserTask, error) {
	byID, err := e.store.GetUserTaskByAvsTaskID(ctx, ev.TaskID.String())
	if err != nil && !dao.IsNotFound(err) {
		return nil, err
	}
	if byID != nil && sameHash(byID.AvsTaskHash, ev.TaskHash.Hex()) {
		return byID, nil
	}
	if ev.TaskHash == (common.Hash{}) {
		return byID, nil
	}

	byHash, err := e.store.GetUserTaskByHash(ctx, ev.TaskHash.Hex())
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if byID != nil {
		xzap.WithContext(ctx).Warn("tentative task id taken by another application",
			zap.String("tentative_owner", byID.ID), zap.String("application_id", byHash.ID))
	}
	return byHash, nil
}

func createdChanges(t *avs.UserTask, ev *contract.TaskCreatedEvent, now time.Time) map[string]interface{} {
	id := ev.TaskID.String()
	deadline := ev.DeadlineTime()
	txHash := ""
	if ev.Meta.TxHash != (common.Hash{}) {
		txHash = ev.Meta.TxHash.Hex()
	}

	if t.Status.CanTransition(avs.UserTaskStatusInProgress) {
		fields := map[string]interface{}{
			"status":       avs.UserTaskStatusInProgress,
			"avs_task_id":  id,
			"avs_deadline": deadline,
			"started_at":   now,
		}
		if txHash != "" && t.TaskCreationTxHash == "" {
			fields["task_creation_tx_hash"] = txHash
		}
		return fields
	}

	// confirmed already, or moved on; only fill in what is missing
	fields := map[string]interface{}{}
	if t.AvsTaskID != id {
		fields["avs_task_id"] = id
	}
	if t.AvsDeadline == nil {
		fields["avs_deadline"] = deadline
	}
	if t.TaskCreationTxHash == "" && txHash != "" {
		fields["task_creation_tx_hash"] = txHash
	}
	return fields
}

// HandleTaskCompleted marks the application with the event's hash completed.
func (e *Engine) HandleTaskCompleted(ctx context.Context, ev *contract.TaskCompletedEvent) {
	logger := xzap.WithContext(ctx).With(
		zap.String("task_id", ev.TaskID.String()),
		zap.String("task_hash", ev.TaskHash.Hex()),
		zap.String("status", ev.Status))

	app, err := e.store.GetUserTaskByHash(ctx, ev.TaskHash.Hex())
	if err != nil {
		if dao.IsNotFound(err) {
			metrics.ChainEvents.WithLabelValues(contract.EventTaskCompleted, "unknown").Inc()
			logger.Warn("no application matches TaskCompleted, dropped")
			return
		}
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCompleted, "failed").Inc()
		logger.Error("failed to look up application for TaskCompleted", zap.Error(err))
		return
	}

	now := e.now().UTC()
	changed, err := e.mutate(ctx, app.ID, func(t *avs.UserTask) map[string]interface{} {
		return completedChanges(t, ev, now)
	})
	if err != nil {
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCompleted, "failed").Inc()
		logger.Error("failed to apply TaskCompleted", zap.String("application_id", app.ID), zap.Error(err))
		return
	}
	if !changed {
		metrics.ChainEvents.WithLabelValues(contract.EventTaskCompleted, "duplicate").Inc()
		logger.Debug("TaskCompleted not applicable", zap.String("application_id", app.ID),
			zap.String("current_status", string(app.Status)))
		return
	}
	metrics.ChainEvents.WithLabelValues(contract.EventTaskCompleted, "applied").Inc()
	logger.Info("task completed on chain", zap.String("application_id", app.ID))
}

// completedChanges accepts completion from any live pre-completion state.
// Events are not ordered, so TaskCompleted may arrive before TaskCreated was
// applied; the chain has the final word either way.
func completedChanges(t *avs.UserTask, ev *contract.TaskCompletedEvent, now time.Time) map[string]interface{} {
	if !t.Status.CanTransition(avs.UserTaskStatusCompleted) {
		return nil
	}
	fields := map[string]interface{}{
		"status":         avs.UserTaskStatusCompleted,
		"avs_task_id":    ev.TaskID.String(),
		"completed_at":   now,
		"reason_message": ev.Status,
	}
	if t.SubmittedAt == nil {
		fields["submitted_at"] = now
	}
	if t.StartedAt == nil {
		fields["started_at"] = now
	}
	if ev.Meta.TxHash != (common.Hash{}) {
		fields["task_completion_tx_hash"] = ev.Meta.TxHash.Hex()
	}
	return fields
}
