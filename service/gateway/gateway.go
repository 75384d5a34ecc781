// Package gateway submits createTask transactions to the AVS contract and
// delivers its TaskCreated/TaskCompleted events. It never touches persisted
// application state.
package gateway

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/contract"
	"github.com/locey/TaskAVS/service/metrics"
)

const (
	defaultTxTimeout      = 30 * time.Second
	defaultReceiptTimeout = 120 * time.Second
)

type Options struct {
	ChainID        *big.Int
	TxTimeout      time.Duration
	ReceiptTimeout time.Duration
}

type CreateTaskParams struct {
	Assignee     common.Address
	DeadlineDays int
	AssetAddress common.Address
	AssetType    string
	// IssuedAt anchors the deadline; callers that precompute the task hash
	// pass the same instant so both sides hash the same deadline.
	IssuedAt time.Time
}

type CreateTaskResult struct {
	Receipt  *types.Receipt
	TxHash   common.Hash
	TaskID   *big.Int // expected id, counter + 1; confirmed only by TaskCreated
	Deadline *big.Int // unix milliseconds
	GasCost  *big.Int
}

type Gateway struct {
	backend        Backend
	avs            *contract.AVS
	key            *ecdsa.PrivateKey
	from           common.Address
	signer         types.Signer
	txTimeout      time.Duration
	receiptTimeout time.Duration

	// serialises nonce read, signing and broadcast for the admin key
	signMu sync.Mutex

	// serialises subscribe calls and is held across the dial; mu is not
	subMu sync.Mutex

	mu        sync.Mutex
	subs      map[string]*subscription
	lastBlock map[string]uint64
	closed    bool
}

func New(backend Backend, avs *contract.AVS, privateKeyHex string, opts Options) (*Gateway, error) {
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid admin private key")
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = defaultTxTimeout
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = defaultReceiptTimeout
	}
	return &Gateway{
		backend:        backend,
		avs:            avs,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		signer:         types.LatestSignerForChainID(opts.ChainID),
		txTimeout:      opts.TxTimeout,
		receiptTimeout: opts.ReceiptTimeout,
		subs:           make(map[string]*subscription),
		lastBlock:      make(map[string]uint64),
	}, nil
}

// From is the administrator account that pays for submissions.
func (g *Gateway) From() common.Address {
	return g.from
}

func (g *Gateway) ContractAddress() common.Address {
	return g.avs.Address()
}

// FormatEther renders wei as a decimal ether string.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}

// unavailable classifies a failed read: a node that answered with a JSON-RPC
// error is reachable, anything else means the endpoint is not.
func unavailable(err error, msg string) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return errcode.ErrSubmissionFailed.Wrap(err, msg)
	}
	return errcode.ErrChainUnavailable.Wrap(err, msg)
}

func (g *Gateway) estimate(ctx context.Context, msg ethereum.CallMsg) (*big.Int, uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, g.txTimeout)
	defer cancel()

	price, err := g.backend.SuggestGasPrice(cctx)
	if err != nil {
		return nil, 0, errcode.ErrChainUnavailable.Wrap(err, "failed to get gas price")
	}
	limit, err := g.backend.EstimateGas(cctx, msg)
	if err != nil {
		return nil, 0, unavailable(err, "failed to estimate gas")
	}
	return price, limit, nil
}

// EstimateGas returns gas price times gas limit for msg, in wei.
func (g *Gateway) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (*big.Int, error) {
	price, limit, err := g.estimate(ctx, msg)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(limit)), nil
}

// LatestTaskNum reads the contract's task counter, the id of the most
// recently created task.
func (g *Gateway) LatestTaskNum(ctx context.Context) (*big.Int, error) {
	data, err := g.avs.PackLatestTaskNum()
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack latestTaskNum")
	}
	to := g.avs.Address()
	cctx, cancel := context.WithTimeout(ctx, g.txTimeout)
	defer cancel()
	out, err := g.backend.CallContract(cctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errcode.ErrChainUnavailable.Wrap(err, "failed to read task counter")
	}
	n, err := g.avs.UnpackLatestTaskNum(out)
	if err != nil {
		return nil, errcode.ErrChainUnavailable.Wrap(err, "failed to read task counter")
	}
	return n, nil
}

// CreateTask submits createTask for the assignee after checking the admin
// account can pay for it, and waits for the transaction to be mined.
func (g *Gateway) CreateTask(ctx context.Context, p CreateTaskParams) (*CreateTaskResult, error) {
	logger := xzap.WithContext(ctx)
	issuedAt := p.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	deadline := contract.DeadlineMillis(issuedAt, p.DeadlineDays)

	latest, err := g.LatestTaskNum(ctx)
	if err != nil {
		metrics.ChainSubmissions.WithLabelValues("unavailable").Inc()
		return nil, err
	}
	taskID := new(big.Int).Add(latest, big.NewInt(1))

	data, err := g.avs.PackCreateTask(p.Assignee, deadline, p.AssetAddress, p.AssetType)
	if err != nil {
		return nil, errcode.ErrInvalidInput.Wrap(err, "failed to build createTask call")
	}
	to := g.avs.Address()
	price, limit, err := g.estimate(ctx, ethereum.CallMsg{From: g.from, To: &to, Data: data})
	if err != nil {
		metrics.ChainSubmissions.WithLabelValues("estimate_failed").Inc()
		return nil, err
	}
	cost := new(big.Int).Mul(price, new(big.Int).SetUint64(limit))

	cctx, cancel := context.WithTimeout(ctx, g.txTimeout)
	balance, err := g.backend.BalanceAt(cctx, g.from, nil)
	cancel()
	if err != nil {
		metrics.ChainSubmissions.WithLabelValues("unavailable").Inc()
		return nil, errcode.ErrChainUnavailable.Wrap(err, "failed to get admin balance")
	}
	if balance.Cmp(cost) < 0 {
		metrics.ChainSubmissions.WithLabelValues("insufficient_funds").Inc()
		return nil, errcode.ErrInsufficientFunds.WithMsg("insufficient balance %s ETH for gas %s ETH",
			FormatEther(balance), FormatEther(cost))
	}

	signed, err := g.send(ctx, to, limit, price, data)
	if err != nil {
		metrics.ChainSubmissions.WithLabelValues("send_failed").Inc()
		return nil, err
	}
	logger.Info("task created on blockchain",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("tentative_task_id", taskID.String()),
		zap.String("gas_cost_eth", FormatEther(cost)))

	wctx, wcancel := context.WithTimeout(ctx, g.receiptTimeout)
	receipt, err := bind.WaitMined(wctx, g.backend, signed)
	wcancel()
	if err != nil {
		metrics.ChainSubmissions.WithLabelValues("not_mined").Inc()
		return nil, errcode.ErrSubmissionFailed.Wrap(err, "failed to wait for transaction "+signed.Hash().Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.ChainSubmissions.WithLabelValues("reverted").Inc()
		return nil, errcode.ErrSubmissionFailed.WithMsg("transaction %s reverted", signed.Hash().Hex())
	}
	logger.Debug("transaction mined", zap.String("tx_hash", receipt.TxHash.Hex()), zap.Uint64("gas_used", receipt.GasUsed))
	metrics.ChainSubmissions.WithLabelValues("ok").Inc()

	return &CreateTaskResult{
		Receipt:  receipt,
		TxHash:   signed.Hash(),
		TaskID:   taskID,
		Deadline: deadline,
		GasCost:  cost,
	}, nil
}

func (g *Gateway) send(ctx context.Context, to common.Address, gasLimit uint64, gasPrice *big.Int, data []byte) (*types.Transaction, error) {
	g.signMu.Lock()
	defer g.signMu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, g.txTimeout)
	defer cancel()

	nonce, err := g.backend.PendingNonceAt(cctx, g.from)
	if err != nil {
		return nil, errcode.ErrSubmissionFailed.Wrap(err, "failed to get nonce")
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, g.signer, g.key)
	if err != nil {
		return nil, errcode.ErrSubmissionFailed.Wrap(err, "failed to sign transaction")
	}
	if err := g.backend.SendTransaction(cctx, signed); err != nil {
		return nil, errcode.ErrSubmissionFailed.Wrap(err, "failed to send transaction")
	}
	return signed, nil
}
