package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/locey/TaskAVS/api/router"
	"github.com/locey/TaskAVS/app"
	"github.com/locey/TaskAVS/service/svc"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP api together with the chain event listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, true)
		},
	}
}

// NewSyncCommand runs only the listener, for deployments that scale the api
// separately.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run only the chain event listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, false)
		},
	}
}

func run(opts *RootOptions, withApi bool) error {
	c, err := opts.load()
	if err != nil {
		return err
	}
	serverCtx, err := svc.NewServiceContext(c)
	if err != nil {
		return err
	}
	defer serverCtx.Close()

	var r *gin.Engine
	if withApi {
		r = router.NewRouter(serverCtx)
	}
	platform, err := app.NewPlatform(c, r, serverCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return platform.Start(ctx)
}
