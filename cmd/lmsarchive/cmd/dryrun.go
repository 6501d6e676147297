package cmd

import (
	"github.com/spf13/cobra"
)

var dryrunOpts runOptions

var dryrunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Scan the listing and report what would be archived",
	Long: `Dry-run walks the listing exactly like run but never saves a course.
Every eligible course is reported as DRY-RUN and skipped for the rest of
the scan, so the cap bounds how many distinct courses are reported.

Example:
  lmsarchive dry-run --config lmsarchive.yaml --job spring_cleanup --exclude 104,610`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := dryrunOpts
		opts.dryRun = true
		return executeRun(cmd, opts)
	},
}

func init() {
	addRunFlags(dryrunCmd, &dryrunOpts)

	rootCmd.AddCommand(dryrunCmd)
}
