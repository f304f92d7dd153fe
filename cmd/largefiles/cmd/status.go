package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/largefiles"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show largefiles that differ from their standins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return runStatus(cmd.Context(), all)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolP("all", "A", false, "also show clean files")
}

func runStatus(ctx context.Context, all bool) (err error) {
	repo, log, err := openRepo()
	if err != nil {
		return err
	}
	defer closeAll(&err, repo, nil, log)

	rev, err := repo.Standins(ctx)
	if err != nil {
		return err
	}

	files, err := repo.Status(ctx, rev)
	if err != nil {
		return err
	}
	for _, f := range files {
		if all || f.State != largefiles.StateClean {
			fmt.Fprintln(os.Stdout, f.String())
		}
	}
	return nil
}
