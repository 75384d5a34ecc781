package gateway

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/contract"
)

var (
	assignee = common.HexToAddress("0x1111111111111111111111111111111111111111")
	rwaToken = common.HexToAddress("0x2222222222222222222222222222222222222222")
	oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type fakeSub struct {
	event common.Hash
	logs  chan<- types.Log
	errc  chan error
	once  sync.Once
	unsub chan struct{}
}

func (s *fakeSub) Err() <-chan error { return s.errc }

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() { close(s.unsub) })
}

// fakeBackend is an in-memory chain: one contract with a task counter, an
// admin balance and a log feed.
type fakeBackend struct {
	mu  sync.Mutex
	avs *contract.AVS

	counter  *big.Int
	callErr  error
	gasPrice *big.Int
	gasLimit uint64
	balance  *big.Int
	sendErr  error
	status   uint64
	subErr   error
	closed   bool
	// subGate, when set, holds SubscribeFilterLogs until it is closed;
	// subWaiting is signalled once a call is held
	subGate    chan struct{}
	subWaiting chan struct{}

	sent        []*types.Transaction
	subs        []*fakeSub
	backfilled  []ethereum.FilterQuery
	backfillLog []types.Log
}

func newFakeBackend(a *contract.AVS) *fakeBackend {
	return &fakeBackend{
		avs:      a,
		counter:  big.NewInt(5),
		gasPrice: big.NewInt(1_000_000_000),
		gasLimit: 100_000,
		balance:  new(big.Int).Set(oneEther),
		status:   types.ReceiptStatusSuccessful,
	}
}

func (b *fakeBackend) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.callErr != nil {
		return nil, b.callErr
	}
	return b.avs.ABI().Methods[contract.MethodLatestTaskNum].Outputs.Pack(b.counter)
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gasLimit, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: b.status, TxHash: hash, BlockNumber: big.NewInt(1), GasUsed: b.gasLimit}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backfilled = append(b.backfilled, q)
	return b.backfillLog, nil
}

func (b *fakeBackend) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	gate, waiting := b.subGate, b.subWaiting
	b.mu.Unlock()
	if gate != nil {
		if waiting != nil {
			waiting <- struct{}{}
		}
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subErr != nil {
		return nil, b.subErr
	}
	s := &fakeSub{event: q.Topics[0][0], logs: ch, errc: make(chan error, 1), unsub: make(chan struct{})}
	b.subs = append(b.subs, s)
	return s, nil
}

func (b *fakeBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// latest returns the newest subscription opened for event.
func (b *fakeBackend) latest(event common.Hash) *fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.subs) - 1; i >= 0; i-- {
		if b.subs[i].event == event {
			return b.subs[i]
		}
	}
	return nil
}

func setupGateway(t *testing.T) (*Gateway, *fakeBackend) {
	t.Helper()
	a, err := contract.NewAVS(common.HexToAddress("0x00000000000000000000000000000000000a7500"), "")
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	backend := newFakeBackend(a)
	g, err := New(backend, a, hexutil.Encode(crypto.FromECDSA(key)), Options{
		ChainID:        big.NewInt(31337),
		TxTimeout:      time.Second,
		ReceiptTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(g.Unsubscribe)
	return g, backend
}

func createParams() CreateTaskParams {
	return CreateTaskParams{
		Assignee:     assignee,
		DeadlineDays: 7,
		AssetAddress: rwaToken,
		AssetType:    "rwa",
		IssuedAt:     time.UnixMilli(1_700_000_000_000),
	}
}

func TestNew_Validation(t *testing.T) {
	a, err := contract.NewAVS(common.Address{}, "")
	require.NoError(t, err)

	_, err = New(newFakeBackend(a), a, "0x01", Options{})
	assert.Error(t, err, "chain id required")

	_, err = New(newFakeBackend(a), a, "not-a-key", Options{ChainID: big.NewInt(1)})
	assert.Error(t, err)
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "1", FormatEther(oneEther))
	assert.Equal(t, "1.5", FormatEther(big.NewInt(1_500_000_000_000_000_000)))
	assert.Equal(t, "0", FormatEther(nil))
}

func TestGateway_EstimateGas(t *testing.T) {
	g, _ := setupGateway(t)
	cost, err := g.EstimateGas(context.Background(), ethereum.CallMsg{})
	require.NoError(t, err)
	assert.Equal(t, "100000000000000", cost.String())
}

func TestGateway_LatestTaskNum(t *testing.T) {
	g, backend := setupGateway(t)

	n, err := g.LatestTaskNum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.Int64())

	backend.callErr = errors.New("connection refused")
	_, err = g.LatestTaskNum(context.Background())
	assert.True(t, errcode.Is(err, errcode.ErrChainUnavailable))
}

func TestGateway_CreateTask(t *testing.T) {
	g, backend := setupGateway(t)
	p := createParams()

	res, err := g.CreateTask(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash(), res.TxHash)
	assert.Equal(t, int64(6), res.TaskID.Int64(), "expected id is the counter plus one")
	assert.Equal(t, contract.DeadlineMillis(p.IssuedAt, 7).String(), res.Deadline.String())
	assert.Equal(t, "100000000000000", res.GasCost.String())

	want, err := g.avs.PackCreateTask(assignee, res.Deadline, rwaToken, "rwa")
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())
	assert.Equal(t, g.ContractAddress(), *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, g.From(), sender)
}

func TestGateway_CreateTask_InsufficientFunds(t *testing.T) {
	g, backend := setupGateway(t)
	backend.balance = big.NewInt(1)

	_, err := g.CreateTask(context.Background(), createParams())
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.ErrInsufficientFunds))
	assert.Contains(t, err.Error(), "insufficient balance 0.000000000000000001 ETH for gas 0.0001 ETH")
	assert.Empty(t, backend.sent, "nothing may be broadcast")
}

func TestGateway_CreateTask_SendFails(t *testing.T) {
	g, backend := setupGateway(t)
	backend.sendErr = errors.New("nonce too low")

	_, err := g.CreateTask(context.Background(), createParams())
	assert.True(t, errcode.Is(err, errcode.ErrSubmissionFailed))
}

func TestGateway_CreateTask_Reverted(t *testing.T) {
	g, backend := setupGateway(t)
	backend.status = types.ReceiptStatusFailed

	_, err := g.CreateTask(context.Background(), createParams())
	assert.True(t, errcode.Is(err, errcode.ErrSubmissionFailed))
	assert.Len(t, backend.sent, 1)
}

func TestGateway_CreateTask_ConcurrentNonces(t *testing.T) {
	g, backend := setupGateway(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.CreateTask(context.Background(), createParams())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, tx := range backend.sent {
		assert.False(t, seen[tx.Nonce()], "nonce %d reused", tx.Nonce())
		seen[tx.Nonce()] = true
	}
	assert.Len(t, seen, 5)
}

func createdLog(t *testing.T, a *contract.AVS, taskID int64, block uint64) types.Log {
	t.Helper()
	data, err := a.ABI().Events[contract.EventTaskCreated].Inputs.NonIndexed().Pack(assignee, big.NewInt(1_700_000_000_000))
	require.NoError(t, err)
	return types.Log{
		Address:     a.Address(),
		Topics:      []common.Hash{a.EventID(contract.EventTaskCreated), common.BigToHash(big.NewInt(taskID)), common.HexToHash("0xabc")},
		Data:        data,
		TxHash:      common.BigToHash(big.NewInt(taskID + 1000)),
		BlockNumber: block,
	}
}

func TestGateway_SubscribeTaskCreated(t *testing.T) {
	g, backend := setupGateway(t)
	topic := g.avs.EventID(contract.EventTaskCreated)

	got := make(chan *contract.TaskCreatedEvent, 4)
	calls := 0
	ok := g.SubscribeTaskCreated(func(_ context.Context, ev *contract.TaskCreatedEvent) {
		calls++
		if calls == 1 {
			panic("handler bug")
		}
		got <- ev
	})
	require.True(t, ok)
	assert.False(t, g.Healthy(), "TaskCompleted not subscribed yet")
	require.True(t, g.SubscribeTaskCompleted(func(context.Context, *contract.TaskCompletedEvent) {}))
	assert.True(t, g.Healthy())

	sub := backend.latest(topic)
	require.NotNil(t, sub)

	// the first delivery panics inside the handler and must not end the loop
	sub.logs <- createdLog(t, g.avs, 1, 10)
	removed := createdLog(t, g.avs, 2, 11)
	removed.Removed = true
	sub.logs <- removed
	sub.logs <- types.Log{Topics: []common.Hash{topic}}
	sub.logs <- createdLog(t, g.avs, 3, 12)

	select {
	case ev := <-got:
		assert.Equal(t, int64(3), ev.TaskID.Int64())
		assert.Equal(t, common.BigToHash(big.NewInt(1003)), ev.Meta.TxHash)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.True(t, g.Healthy())
}

func TestGateway_SubscriptionDropAndResubscribe(t *testing.T) {
	g, backend := setupGateway(t)
	topic := g.avs.EventID(contract.EventTaskCreated)

	delivered := make(chan int64, 4)
	handler := func(_ context.Context, ev *contract.TaskCreatedEvent) { delivered <- ev.TaskID.Int64() }
	require.True(t, g.SubscribeTaskCreated(handler))
	require.True(t, g.SubscribeTaskCompleted(func(context.Context, *contract.TaskCompletedEvent) {}))
	require.True(t, g.Healthy())

	backend.latest(topic).logs <- createdLog(t, g.avs, 1, 20)
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	backend.latest(topic).errc <- errors.New("websocket closed")
	assert.Eventually(t, func() bool { return !g.Healthy() }, 2*time.Second, 10*time.Millisecond)

	backend.mu.Lock()
	backend.backfillLog = []types.Log{createdLog(t, g.avs, 2, 21)}
	backend.mu.Unlock()
	require.True(t, g.SubscribeTaskCreated(handler))
	assert.True(t, g.Healthy())

	select {
	case id := <-delivered:
		assert.Equal(t, int64(2), id, "missed event is backfilled")
	case <-time.After(2 * time.Second):
		t.Fatal("backfill not delivered")
	}
	backend.mu.Lock()
	require.Len(t, backend.backfilled, 1)
	assert.Equal(t, uint64(20), backend.backfilled[0].FromBlock.Uint64())
	backend.mu.Unlock()
}

func completedLog(t *testing.T, a *contract.AVS, taskID int64, block uint64) types.Log {
	t.Helper()
	data, err := a.ABI().Events[contract.EventTaskCompleted].Inputs.NonIndexed().Pack(assignee, "verified")
	require.NoError(t, err)
	return types.Log{
		Address:     a.Address(),
		Topics:      []common.Hash{a.EventID(contract.EventTaskCompleted), common.BigToHash(big.NewInt(taskID)), common.HexToHash("0xabc")},
		Data:        data,
		TxHash:      common.BigToHash(big.NewInt(taskID + 2000)),
		BlockNumber: block,
	}
}

func TestGateway_SlowResubscribeDoesNotBlock(t *testing.T) {
	g, backend := setupGateway(t)
	completed := make(chan int64, 1)
	require.True(t, g.SubscribeTaskCreated(func(context.Context, *contract.TaskCreatedEvent) {}))
	require.True(t, g.SubscribeTaskCompleted(func(_ context.Context, ev *contract.TaskCompletedEvent) {
		completed <- ev.TaskID.Int64()
	}))
	completedSub := backend.latest(g.avs.EventID(contract.EventTaskCompleted))
	require.NotNil(t, completedSub)

	gate, waiting := make(chan struct{}), make(chan struct{}, 1)
	backend.mu.Lock()
	backend.subGate, backend.subWaiting = gate, waiting
	backend.mu.Unlock()

	resubscribed := make(chan bool, 1)
	go func() {
		resubscribed <- g.SubscribeTaskCreated(func(context.Context, *contract.TaskCreatedEvent) {})
	}()
	select {
	case <-waiting:
	case <-time.After(time.Second):
		t.Fatal("resubscribe never reached the dial")
	}

	// the dial is stuck; health and the other stream must stay responsive
	health := make(chan bool, 1)
	go func() { health <- g.Healthy() }()
	select {
	case ok := <-health:
		assert.False(t, ok, "TaskCreated is being reopened")
	case <-time.After(time.Second):
		t.Fatal("Healthy blocked behind a pending subscribe")
	}

	completedSub.logs <- completedLog(t, g.avs, 4, 30)
	select {
	case id := <-completed:
		assert.Equal(t, int64(4), id)
	case <-time.After(time.Second):
		t.Fatal("TaskCompleted delivery blocked behind a pending subscribe")
	}

	close(gate)
	select {
	case ok := <-resubscribed:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("resubscribe did not finish")
	}
	assert.True(t, g.Healthy())
}

func TestGateway_SubscribeFails(t *testing.T) {
	g, backend := setupGateway(t)
	backend.subErr = errors.New("subscriptions need a websocket")

	assert.False(t, g.SubscribeTaskCreated(func(context.Context, *contract.TaskCreatedEvent) {}))
	assert.False(t, g.Healthy())
}

func TestGateway_Close(t *testing.T) {
	g, backend := setupGateway(t)
	require.True(t, g.SubscribeTaskCreated(func(context.Context, *contract.TaskCreatedEvent) {}))

	g.Close()
	assert.False(t, g.Healthy())
	assert.True(t, backend.closed)
	assert.False(t, g.SubscribeTaskCreated(func(context.Context, *contract.TaskCreatedEvent) {}))
}
