package cmd

import (
	"github.com/spf13/cobra"

	"github.com/locey/TaskAVS/config"
)

const defaultConfigPath = "./config/config.toml"

type RootOptions struct {
	ConfigPath string
}

func (o *RootOptions) load() (*config.Config, error) {
	return config.UnmarshalConfig(o.ConfigPath)
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "taskavs",
		Short:         "TaskAVS - task applications reconciled with an AVS contract",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "conf", defaultConfigPath, "conf file path")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	return cmd
}
