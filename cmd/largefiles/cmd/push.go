package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aweris/largefiles"
)

var pushCmd = &cobra.Command{
	Use:   "push [remote]",
	Short: "Upload referenced largefiles to a remote store",
	Long:  "Upload every largefile the current standins reference and the remote does not already have.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPush(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(ctx context.Context, args []string) (err error) {
	repo, log, err := openRepo()
	if err != nil {
		return err
	}

	rs, err := openRemote(ctx, repo, args, true)
	defer closeAll(&err, repo, rs, log)
	if err != nil {
		return err
	}

	rev, err := repo.Standins(ctx)
	if err != nil {
		return err
	}

	return repo.Push(ctx, rs, []largefiles.Revision{rev}, nil)
}
