package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [remote]",
	Short: "Bring working files in line with their standins",
	Long:  "Materialize every largefile named by a standin, fetching missing contents from the user cache or the remote store.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdate(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(ctx context.Context, args []string) (err error) {
	repo, log, err := openRepo()
	if err != nil {
		return err
	}

	rs, err := openRemote(ctx, repo, args, false)
	defer closeAll(&err, repo, rs, log)
	if err != nil {
		return err
	}

	rev, err := repo.Standins(ctx)
	if err != nil {
		return err
	}

	report, err := repo.Update(ctx, rev, rs)
	if err != nil {
		return err
	}
	return report.Err()
}
