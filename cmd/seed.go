package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb"
	"github.com/locey/TaskAVS/service/v1"
)

func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the task catalog with the demo task templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return err
			}
			d, closeFn, err := openStore(c)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := gdb.Migrate(d.DB); err != nil {
				return err
			}
			n, err := service.SeedTasks(cmd.Context(), d)
			if err != nil {
				return err
			}
			xzap.Logger().Info("tasks seeded", zap.Int("count", n))
			return nil
		},
	}
}
