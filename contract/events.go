package contract

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event is a decoded AVS log. Handlers switch on the concrete type.
type Event interface {
	Name() string
	Log() Meta
}

// Meta is the position of the log the event was decoded from.
type Meta struct {
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
	Removed     bool
}

type TaskCreatedEvent struct {
	TaskID   *big.Int
	TaskHash common.Hash
	Operator common.Address
	Deadline *big.Int // unix milliseconds, as passed to createTask
	Meta     Meta
}

func (e *TaskCreatedEvent) Name() string { return EventTaskCreated }
func (e *TaskCreatedEvent) Log() Meta    { return e.Meta }

// DeadlineTime converts the on-chain deadline to a time.
func (e *TaskCreatedEvent) DeadlineTime() time.Time {
	if e.Deadline == nil {
		return time.Time{}
	}
	return time.UnixMilli(e.Deadline.Int64()).UTC()
}

type TaskCompletedEvent struct {
	TaskID   *big.Int
	TaskHash common.Hash
	Operator common.Address
	Status   string
	Meta     Meta
}

func (e *TaskCompletedEvent) Name() string { return EventTaskCompleted }
func (e *TaskCompletedEvent) Log() Meta    { return e.Meta }

func metaOf(vLog types.Log) Meta {
	return Meta{
		TxHash:      vLog.TxHash,
		BlockNumber: vLog.BlockNumber,
		LogIndex:    vLog.Index,
		Removed:     vLog.Removed,
	}
}

// indexed returns topics[1] (taskId) and topics[2] (taskHash) of an AVS log.
func (a *AVS) indexed(name string, vLog types.Log) (*big.Int, common.Hash, error) {
	if len(vLog.Topics) < 3 {
		return nil, common.Hash{}, fmt.Errorf("invalid number of topics: %d", len(vLog.Topics))
	}
	if vLog.Topics[0] != a.EventID(name) {
		return nil, common.Hash{}, fmt.Errorf("log is not a %s event", name)
	}
	return new(big.Int).SetBytes(vLog.Topics[1].Bytes()), vLog.Topics[2], nil
}

func (a *AVS) ParseTaskCreated(vLog types.Log) (*TaskCreatedEvent, error) {
	taskID, taskHash, err := a.indexed(EventTaskCreated, vLog)
	if err != nil {
		return nil, err
	}
	vals, err := a.abi.Unpack(EventTaskCreated, vLog.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", EventTaskCreated, err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("invalid %s data length: %d", EventTaskCreated, len(vals))
	}
	operator, ok := vals[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid %s operator type %T", EventTaskCreated, vals[0])
	}
	deadline, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid %s deadline type %T", EventTaskCreated, vals[1])
	}
	return &TaskCreatedEvent{
		TaskID:   taskID,
		TaskHash: taskHash,
		Operator: operator,
		Deadline: deadline,
		Meta:     metaOf(vLog),
	}, nil
}

func (a *AVS) ParseTaskCompleted(vLog types.Log) (*TaskCompletedEvent, error) {
	taskID, taskHash, err := a.indexed(EventTaskCompleted, vLog)
	if err != nil {
		return nil, err
	}
	vals, err := a.abi.Unpack(EventTaskCompleted, vLog.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", EventTaskCompleted, err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("invalid %s data length: %d", EventTaskCompleted, len(vals))
	}
	operator, ok := vals[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid %s operator type %T", EventTaskCompleted, vals[0])
	}
	status, ok := vals[1].(string)
	if !ok {
		return nil, fmt.Errorf("invalid %s status type %T", EventTaskCompleted, vals[1])
	}
	return &TaskCompletedEvent{
		TaskID:   taskID,
		TaskHash: taskHash,
		Operator: operator,
		Status:   status,
		Meta:     metaOf(vLog),
	}, nil
}

// Parse decodes any AVS log this service consumes.
func (a *AVS) Parse(vLog types.Log) (Event, error) {
	if len(vLog.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}
	switch vLog.Topics[0] {
	case a.EventID(EventTaskCreated):
		return a.ParseTaskCreated(vLog)
	case a.EventID(EventTaskCompleted):
		return a.ParseTaskCompleted(vLog)
	default:
		return nil, fmt.Errorf("unknown event topic %s", vLog.Topics[0].Hex())
	}
}
