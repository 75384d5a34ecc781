package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/locey/TaskAVS/common/utils"
)

const (
	MethodLatestTaskNum = "latestTaskNum"
	MethodCreateTask    = "createTask"

	EventTaskCreated   = "TaskCreated"
	EventTaskCompleted = "TaskCompleted"
)

// 合约ABI（简化版本，只包含我们需要的方法和事件）
const AvsABI = `[
    {
        "inputs": [],
        "name": "latestTaskNum",
        "outputs": [
            {"internalType": "uint256", "name": "", "type": "uint256"}
        ],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "inputs": [
            {"internalType": "address", "name": "assignee", "type": "address"},
            {"internalType": "uint256", "name": "deadline", "type": "uint256"},
            {"internalType": "address", "name": "rwaTokenAddress", "type": "address"},
            {"internalType": "string", "name": "assetType", "type": "string"}
        ],
        "name": "createTask",
        "outputs": [],
        "stateMutability": "nonpayable",
        "type": "function"
    },
    {
        "anonymous": false,
        "inputs": [
            {"indexed": true, "internalType": "uint256", "name": "taskId", "type": "uint256"},
            {"indexed": true, "internalType": "bytes32", "name": "taskHash", "type": "bytes32"},
            {"indexed": false, "internalType": "address", "name": "operator", "type": "address"},
            {"indexed": false, "internalType": "uint256", "name": "deadline", "type": "uint256"}
        ],
        "name": "TaskCreated",
        "type": "event"
    },
    {
        "anonymous": false,
        "inputs": [
            {"indexed": true, "internalType": "uint256", "name": "taskId", "type": "uint256"},
            {"indexed": true, "internalType": "bytes32", "name": "taskHash", "type": "bytes32"},
            {"indexed": false, "internalType": "address", "name": "operator", "type": "address"},
            {"indexed": false, "internalType": "string", "name": "status", "type": "string"}
        ],
        "name": "TaskCompleted",
        "type": "event"
    }
]`

// AVS packs calls to and decodes logs from the task AVS contract.
type AVS struct {
	abi     abi.ABI
	address common.Address
}

// NewAVS binds the contract at address. An empty abiPath uses the embedded ABI.
func NewAVS(address common.Address, abiPath string) (*AVS, error) {
	var (
		parsed abi.ABI
		err    error
	)
	if abiPath != "" {
		parsed, err = utils.ReadABI(abiPath)
	} else {
		parsed, err = abi.JSON(strings.NewReader(AvsABI))
	}
	if err != nil {
		return nil, err
	}
	for _, name := range []string{MethodLatestTaskNum, MethodCreateTask} {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("abi has no method %s", name)
		}
	}
	for _, name := range []string{EventTaskCreated, EventTaskCompleted} {
		if _, ok := parsed.Events[name]; !ok {
			return nil, fmt.Errorf("abi has no event %s", name)
		}
	}
	return &AVS{abi: parsed, address: address}, nil
}

func (a *AVS) Address() common.Address {
	return a.address
}

func (a *AVS) ABI() abi.ABI {
	return a.abi
}

func (a *AVS) PackLatestTaskNum() ([]byte, error) {
	return a.abi.Pack(MethodLatestTaskNum)
}

func (a *AVS) UnpackLatestTaskNum(out []byte) (*big.Int, error) {
	vals, err := a.abi.Unpack(MethodLatestTaskNum, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", MethodLatestTaskNum, err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unexpected %s output length %d", MethodLatestTaskNum, len(vals))
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", MethodLatestTaskNum, vals[0])
	}
	return n, nil
}

// PackCreateTask builds calldata for createTask. deadline is in unix milliseconds.
func (a *AVS) PackCreateTask(assignee common.Address, deadline *big.Int, asset common.Address, assetType string) ([]byte, error) {
	data, err := a.abi.Pack(MethodCreateTask, assignee, deadline, asset, assetType)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", MethodCreateTask, err)
	}
	return data, nil
}

// EventID returns the topic0 of a named event.
func (a *AVS) EventID(name string) common.Hash {
	return a.abi.Events[name].ID
}
