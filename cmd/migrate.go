package cmd

import (
	"github.com/spf13/cobra"

	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
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
			xzap.Logger().Info("schema migrated")
			return nil
		},
	}
}
