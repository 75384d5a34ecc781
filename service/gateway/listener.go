package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/contract"
	"github.com/locey/TaskAVS/service/metrics"
)

type TaskCreatedHandler func(ctx context.Context, ev *contract.TaskCreatedEvent)

type TaskCompletedHandler func(ctx context.Context, ev *contract.TaskCompletedEvent)

type subscription struct {
	event  string
	cancel context.CancelFunc
	done   chan struct{}
}

// SubscribeTaskCreated registers h for TaskCreated logs. It reports false,
// after logging, when the subscription could not be opened; Healthy stays
// false until a later call succeeds.
func (g *Gateway) SubscribeTaskCreated(h TaskCreatedHandler) bool {
	return g.subscribe(contract.EventTaskCreated, func(ctx context.Context, ev contract.Event) {
		if e, ok := ev.(*contract.TaskCreatedEvent); ok {
			h(ctx, e)
		}
	})
}

func (g *Gateway) SubscribeTaskCompleted(h TaskCompletedHandler) bool {
	return g.subscribe(contract.EventTaskCompleted, func(ctx context.Context, ev contract.Event) {
		if e, ok := ev.(*contract.TaskCompletedEvent); ok {
			h(ctx, e)
		}
	})
}

// Healthy reports whether both TaskCreated and TaskCompleted have a live
// subscription.
func (g *Gateway) Healthy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	return g.subs[contract.EventTaskCreated] != nil && g.subs[contract.EventTaskCompleted] != nil
}

func (g *Gateway) subscribe(event string, dispatch func(context.Context, contract.Event)) bool {
	logger := xzap.Logger().With(zap.String("event", event))

	g.subMu.Lock()
	defer g.subMu.Unlock()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		logger.Error("gateway closed, subscription refused")
		return false
	}
	if old := g.subs[event]; old != nil {
		old.cancel()
		delete(g.subs, event)
	}
	fromBlock := g.lastBlock[event]
	g.mu.Unlock()

	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.avs.Address()},
		Topics:    [][]common.Hash{{g.avs.EventID(event)}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	logs := make(chan types.Log, 64)
	sub, err := g.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		cancel()
		metrics.ListenerUp.WithLabelValues(event).Set(0)
		logger.Error("failed to subscribe to event logs", zap.Error(err))
		return false
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		cancel()
		sub.Unsubscribe()
		logger.Error("gateway closed while subscribing")
		return false
	}
	s := &subscription{event: event, cancel: cancel, done: make(chan struct{})}
	g.subs[event] = s
	g.mu.Unlock()

	metrics.ListenerUp.WithLabelValues(event).Set(1)
	logger.Info("subscribed to contract event", zap.String("contract", g.avs.Address().Hex()))

	go g.run(ctx, s, sub, logs, query, fromBlock, dispatch)
	return true
}

func (g *Gateway) run(ctx context.Context, s *subscription, sub ethereum.Subscription, logs <-chan types.Log,
	query ethereum.FilterQuery, fromBlock uint64, dispatch func(context.Context, contract.Event)) {
	defer close(s.done)
	defer sub.Unsubscribe()

	// events mined while the previous subscription was down; redelivery is fine
	if fromBlock > 0 {
		g.backfill(ctx, s.event, query, fromBlock, dispatch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			xzap.Logger().Error("event subscription dropped", zap.String("event", s.event), zap.Error(err))
			g.drop(s)
			return
		case vLog := <-logs:
			g.deliver(s.event, vLog, dispatch)
		}
	}
}

func (g *Gateway) backfill(ctx context.Context, event string, query ethereum.FilterQuery, fromBlock uint64,
	dispatch func(context.Context, contract.Event)) {
	query.FromBlock = new(big.Int).SetUint64(fromBlock)
	cctx, cancel := context.WithTimeout(ctx, g.txTimeout)
	missed, err := g.backend.FilterLogs(cctx, query)
	cancel()
	if err != nil {
		xzap.Logger().Warn("failed to backfill events", zap.String("event", event),
			zap.Uint64("from_block", fromBlock), zap.Error(err))
		return
	}
	for _, vLog := range missed {
		g.deliver(event, vLog, dispatch)
	}
}

// deliver decodes a log and runs the handler; neither a malformed log nor a
// panicking handler may end the subscription loop.
func (g *Gateway) deliver(event string, vLog types.Log, dispatch func(context.Context, contract.Event)) {
	logger := xzap.Logger().With(zap.String("event", event), zap.String("tx_hash", vLog.TxHash.Hex()),
		zap.Uint64("block", vLog.BlockNumber))
	if vLog.Removed {
		metrics.ChainEvents.WithLabelValues(event, "removed").Inc()
		logger.Warn("ignoring log removed by reorg")
		return
	}
	ev, err := g.avs.Parse(vLog)
	if err != nil {
		metrics.ChainEvents.WithLabelValues(event, "malformed").Inc()
		logger.Error("failed to parse event", zap.Error(err))
		return
	}

	ctx := xzap.NewContext(context.Background(), vLog.TxHash.Hex())
	threading.RunSafe(func() {
		dispatch(ctx, ev)
	})

	g.mu.Lock()
	if vLog.BlockNumber > g.lastBlock[event] {
		g.lastBlock[event] = vLog.BlockNumber
	}
	g.mu.Unlock()
}

func (g *Gateway) drop(s *subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subs[s.event] == s {
		delete(g.subs, s.event)
		metrics.ListenerUp.WithLabelValues(s.event).Set(0)
	}
}

// Unsubscribe stops all event delivery and waits for the loops to exit.
func (g *Gateway) Unsubscribe() {
	g.mu.Lock()
	subs := make([]*subscription, 0, len(g.subs))
	for event, s := range g.subs {
		s.cancel()
		subs = append(subs, s)
		delete(g.subs, event)
		metrics.ListenerUp.WithLabelValues(event).Set(0)
	}
	g.mu.Unlock()
	for _, s := range subs {
		<-s.done
	}
}

// Close unsubscribes and releases the chain connection.
func (g *Gateway) Close() {
	g.Unsubscribe()
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.backend.Close()
}
