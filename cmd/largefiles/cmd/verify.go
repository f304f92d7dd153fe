package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/largefiles"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [remote]",
	Short: "Check that referenced largefiles exist and are intact",
	Long: `Check every largefile the current standins reference.

Levels:
  exists  only check presence (on the remote when one is given)
  local   re-hash the contents held in the store and user cache
  all     like local, fetching what is missing locally from the remote`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("level", largefiles.VerifyExists.String(), "verification level (exists, local, all)")
	viper.BindPFlag("verify.level", verifyCmd.Flags().Lookup("level"))
}

func runVerify(ctx context.Context, args []string) (err error) {
	level, err := largefiles.ParseVerifyLevel(viper.GetString("verify.level"))
	if err != nil {
		return err
	}

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

	report, err := repo.Verify(ctx, []largefiles.Revision{rev}, level, rs)
	if err != nil {
		return err
	}
	for _, f := range report.Files {
		if f.Outcome != largefiles.OutcomeOK {
			fmt.Fprintln(os.Stdout, f.String())
		}
	}
	return report.Err()
}
