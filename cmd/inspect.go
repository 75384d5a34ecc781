package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewInspectCommand lists PENDING applications that never got a creation
// transaction, left behind when the process died mid submission.
func NewInspectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List applications stuck before chain submission",
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

			tasks, err := d.GetDanglingUserTasks(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tTASK\tTASK HASH\tCREATED\tREASON")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.IdentityID, t.TaskID, t.AvsTaskHash,
					t.CreatedAt.Format("2006-01-02 15:04:05"), t.ReasonMessage)
			}
			return w.Flush()
		},
	}
}
