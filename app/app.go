package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/config"
	"github.com/locey/TaskAVS/service/svc"
)

const shutdownTimeout = 15 * time.Second

type Platform struct {
	config    *config.Config
	router    *gin.Engine
	serverCtx *svc.ServerCtx
}

// NewPlatform wires the HTTP surface and the event listener; router may be
// nil to run the listener alone.
func NewPlatform(config *config.Config, router *gin.Engine, serverCtx *svc.ServerCtx) (*Platform, error) {
	if serverCtx == nil || serverCtx.Engine == nil || serverCtx.Gateway == nil {
		return nil, errors.New("service context is not initialised")
	}
	return &Platform{
		config:    config,
		router:    router,
		serverCtx: serverCtx,
	}, nil
}

// Start runs until ctx is cancelled or the HTTP server fails, then stops the
// listener and drains in-flight requests.
func (p *Platform) Start(ctx context.Context) error {
	logger := xzap.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.reportDangling(ctx)

	done := make(chan struct{})
	threading.GoSafe(func() {
		defer close(done)
		p.superviseListener(ctx)
	})

	var srvErr error
	if p.router != nil {
		srv := &http.Server{Addr: p.config.Api.Port, Handler: p.router}
		errCh := make(chan error, 1)
		threading.GoSafe(func() {
			logger.Info("TaskAVS api run", zap.String("port", p.config.Api.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		})

		select {
		case <-ctx.Done():
		case err, ok := <-errCh:
			if ok {
				srvErr = errors.Wrap(err, "api server stopped")
			}
		}
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown", zap.Error(err))
		}
		stop()
	} else {
		<-ctx.Done()
	}

	cancel()
	<-done
	p.serverCtx.Gateway.Unsubscribe()
	logger.Info("TaskAVS stopped")
	return srvErr
}

// superviseListener keeps both event subscriptions open, reopening them
// after the backoff whenever one drops. Missed blocks are backfilled by the
// gateway on resubscribe.
func (p *Platform) superviseListener(ctx context.Context) {
	logger := xzap.WithContext(ctx)
	backoff := p.config.Listener.RestartBackoff
	if backoff <= 0 {
		backoff = 10 * time.Second
	}

	if !p.serverCtx.Engine.Start() {
		logger.Error("event listener failed to start, will retry", zap.Duration("backoff", backoff))
	}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.serverCtx.Gateway.Healthy() {
				continue
			}
			logger.Warn("event listener down, resubscribing")
			if p.serverCtx.Engine.Start() {
				logger.Info("event listener restored")
			}
		}
	}
}

// reportDangling warns about applications a previous run left between the
// local write and the broadcast; they need an operator decision.
func (p *Platform) reportDangling(ctx context.Context) {
	tasks, err := p.serverCtx.Engine.Dangling(ctx)
	if err != nil {
		xzap.WithContext(ctx).Warn("failed to check dangling applications", zap.Error(err))
		return
	}
	for _, t := range tasks {
		xzap.WithContext(ctx).Warn("application pending without creation tx",
			zap.String("application_id", t.ID), zap.String("task_hash", t.AvsTaskHash),
			zap.Time("created_at", t.CreatedAt))
	}
}
