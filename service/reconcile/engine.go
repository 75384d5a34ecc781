// Package reconcile owns the lifecycle of task applications. Applying is a
// saga: the PENDING record is written before anything is sent to the chain,
// the createTask submission either leaves it in place or compensates it to
// REJECTED, and the contract's events finalise it idempotently, correlated by
// task hash.
package reconcile

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/chain"
	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	"github.com/locey/TaskAVS/contract"
	"github.com/locey/TaskAVS/dao"
	"github.com/locey/TaskAVS/service/gateway"
)

const (
	DefaultAssetType = "rwa"

	maxUpdateAttempts = 5
)

// Chain is what the engine needs from the blockchain gateway.
type Chain interface {
	LatestTaskNum(ctx context.Context) (*big.Int, error)
	CreateTask(ctx context.Context, p gateway.CreateTaskParams) (*gateway.CreateTaskResult, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (*big.Int, error)
	SubscribeTaskCreated(h gateway.TaskCreatedHandler) bool
	SubscribeTaskCompleted(h gateway.TaskCompletedHandler) bool
}

type Store interface {
	GetTaskByID(ctx context.Context, taskID string) (*avs.TaskTemplate, error)
	GetIdentityByID(ctx context.Context, id string) (*avs.Identity, error)
	GetUserTask(ctx context.Context, identityID, taskID, assetAddress, chainID string) (*avs.UserTask, error)
	GetUserTaskByID(ctx context.Context, id string) (*avs.UserTask, error)
	GetUserTaskByAvsTaskID(ctx context.Context, avsTaskID string) (*avs.UserTask, error)
	GetUserTaskByHash(ctx context.Context, taskHash string) (*avs.UserTask, error)
	GetUserTasksByIdentity(ctx context.Context, identityID string) ([]avs.UserTask, error)
	GetDanglingUserTasks(ctx context.Context) ([]avs.UserTask, error)
	CreateUserTask(ctx context.Context, userTask *avs.UserTask) error
	CompareAndUpdateUserTask(ctx context.Context, id string, version int64, fields map[string]interface{}) (bool, error)
}

type Options struct {
	ChainName string
	ChainID   string
	AssetType string
}

type Engine struct {
	store     Store
	chain     Chain
	chainName string
	chainID   string
	assetType string
	now       func() time.Time
}

func New(store Store, c Chain, opts Options) *Engine {
	if opts.AssetType == "" {
		opts.AssetType = DefaultAssetType
	}
	return &Engine{
		store:     store,
		chain:     c,
		chainName: opts.ChainName,
		chainID:   opts.ChainID,
		assetType: opts.AssetType,
		now:       time.Now,
	}
}

// Start registers both event handlers with the gateway and reports whether
// both subscriptions are live.
func (e *Engine) Start() bool {
	created := e.chain.SubscribeTaskCreated(e.HandleTaskCreated)
	completed := e.chain.SubscribeTaskCompleted(e.HandleTaskCompleted)
	return created && completed
}

func notFound(err error, format string, args ...interface{}) error {
	if dao.IsNotFound(err) {
		return errcode.ErrNotFound.WithMsg(format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

// ApplyForTask records an application for identityID on taskID against
// assetAddress and submits the matching createTask transaction.
func (e *Engine) ApplyForTask(ctx context.Context, taskID, identityID, assetAddress string) (*avs.UserTask, error) {
	logger := xzap.WithContext(ctx)
	if taskID == "" || identityID == "" {
		return nil, errcode.ErrInvalidInput.WithMsg("task id and user id are required")
	}
	asset, err := chain.UniformAddress(e.chainName, assetAddress)
	if err != nil {
		return nil, errcode.ErrInvalidInput.Wrap(err, "token address is illegal")
	}

	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task %s not found", taskID)
	}
	identity, err := e.store.GetIdentityByID(ctx, identityID)
	if err != nil {
		return nil, notFound(err, "user %s not found", identityID)
	}
	if identity.IsBanned {
		return nil, errcode.ErrForbidden.WithMsg("%s", identity.BanReason)
	}

	existing, err := e.store.GetUserTask(ctx, identity.ID, task.ID, asset, e.chainID)
	if err != nil && !dao.IsNotFound(err) {
		return nil, errors.Wrap(err, "failed on check existing application")
	}
	if existing != nil {
		return nil, errcode.ErrConflict.WithMsg("you have already applied for this task")
	}

	issuedAt := e.now()
	deadline := contract.DeadlineMillis(issuedAt, task.Deadline)
	taskHash := contract.TaskHash(common.HexToAddress(identity.Address), deadline, common.HexToAddress(asset), e.assetType)

	// the contract hands out latestTaskNum + 1 next; only a hint, the hash decides
	latest, err := e.chain.LatestTaskNum(ctx)
	if err != nil {
		return nil, err
	}
	tentativeID := new(big.Int).Add(latest, big.NewInt(1))

	userTask := &avs.UserTask{
		IdentityID:   identity.ID,
		TaskID:       task.ID,
		AssetAddress: asset,
		ChainID:      e.chainID,
		Status:       avs.UserTaskStatusPending,
		AvsTaskHash:  taskHash.Hex(),
		AvsTaskID:    tentativeID.String(),
		Metadata:     map[string]interface{}{"tokenAddress": asset},
	}
	if err := e.store.CreateUserTask(ctx, userTask); err != nil {
		if dao.IsDuplicate(err) {
			return nil, errcode.ErrConflict.WithMsg("you have already applied for this task")
		}
		return nil, errors.Wrap(err, "failed on create application")
	}
	logger.Info("application recorded",
		zap.String("application_id", userTask.ID),
		zap.String("task_hash", userTask.AvsTaskHash),
		zap.String("tentative_task_id", userTask.AvsTaskID))

	result, err := e.chain.CreateTask(ctx, gateway.CreateTaskParams{
		Assignee:     common.HexToAddress(identity.Address),
		DeadlineDays: task.Deadline,
		AssetAddress: common.HexToAddress(asset),
		AssetType:    e.assetType,
		IssuedAt:     issuedAt,
	})
	if err != nil {
		e.compensate(ctx, userTask.ID, err)
		return nil, err
	}

	if _, err := e.mutate(ctx, userTask.ID, func(t *avs.UserTask) map[string]interface{} {
		return submittedChanges(t, result)
	}); err != nil {
		// the transaction is out; the TaskCreated event will still finalise the record
		logger.Error("failed to record creation tx hash", zap.String("application_id", userTask.ID),
			zap.String("tx_hash", result.TxHash.Hex()), zap.Error(err))
	}
	logger.Info("task application submitted to blockchain",
		zap.String("application_id", userTask.ID), zap.String("tx_hash", result.TxHash.Hex()))

	return e.store.GetUserTaskByID(ctx, userTask.ID)
}

// submittedChanges records the broadcast. Status and the tentative id stay
// as they are until the contract confirms with TaskCreated.
func submittedChanges(t *avs.UserTask, result *gateway.CreateTaskResult) map[string]interface{} {
	if t.TaskCreationTxHash != "" {
		return nil
	}
	return map[string]interface{}{"task_creation_tx_hash": result.TxHash.Hex()}
}

// compensate settles the PENDING anchor after a failed submission. Only a
// failed broadcast or mining rejects the application; failures before
// anything was sent leave it PENDING with the reason recorded.
func (e *Engine) compensate(ctx context.Context, id string, cause error) {
	logger := xzap.WithContext(ctx).With(zap.String("application_id", id))
	rejected := errcode.Is(cause, errcode.ErrSubmissionFailed)
	_, err := e.mutate(ctx, id, func(t *avs.UserTask) map[string]interface{} {
		if !rejected {
			if t.Status != avs.UserTaskStatusPending {
				return nil
			}
			return map[string]interface{}{"reason_message": "Blockchain submission not attempted: " + cause.Error()}
		}
		if !t.Status.CanTransition(avs.UserTaskStatusRejected) {
			return nil
		}
		return map[string]interface{}{
			"status":         avs.UserTaskStatusRejected,
			"reason_message": "Blockchain submission failed: " + cause.Error(),
		}
	})
	if err != nil {
		logger.Error("failed to record submission failure", zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	logger.Warn("task submission failed", zap.Bool("rejected", rejected), zap.Error(cause))
}

// mutate applies change to the current version of the application with a
// compare-and-swap, re-reading on conflict. change returns no fields when
// there is nothing to do. It reports whether a write happened.
func (e *Engine) mutate(ctx context.Context, id string, change func(t *avs.UserTask) map[string]interface{}) (bool, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := e.store.GetUserTaskByID(ctx, id)
		if err != nil {
			return false, notFound(err, "application %s not found", id)
		}
		fields := change(current)
		if len(fields) == 0 {
			return false, nil
		}
		ok, err := e.store.CompareAndUpdateUserTask(ctx, id, current.Version, fields)
		if err != nil {
			return false, errors.Wrapf(err, "failed on update application %s", id)
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Errorf("application %s kept changing, gave up after %d attempts", id, maxUpdateAttempts)
}

// Dangling lists PENDING applications with no creation transaction, the
// records a crash between the local write and the broadcast leaves behind.
func (e *Engine) Dangling(ctx context.Context) ([]avs.UserTask, error) {
	return e.store.GetDanglingUserTasks(ctx)
}

func sameHash(a, b string) bool {
	return strings.EqualFold(a, b)
}
