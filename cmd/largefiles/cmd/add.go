package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [path...]",
	Short: "Capture large files into the store",
	Long:  "Hash every large file under the given paths, store its contents and write its standin. With no paths the whole working copy is scanned.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(ctx context.Context, paths []string) (err error) {
	repo, log, err := openRepo()
	if err != nil {
		return err
	}
	defer closeAll(&err, repo, nil, log)

	rev, err := repo.Capture(ctx, paths...)
	if err != nil {
		return err
	}

	for _, p := range rev.Paths() {
		fmt.Fprintf(os.Stdout, "%s %s\n", rev.Standins[p].Hash, p)
	}
	return nil
}
