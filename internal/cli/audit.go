package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/internal/audit"
	"github.com/qube-forensics/sealcheck/pkg/color"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
)

var auditCmd = &cobra.Command{
	Use:   "audit <command>",
	Short: "Inspect the verdict audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [<path>]",
	Short: "Check the hash chain of a verdict audit log",
	Long: `Check the hash chain of a verdict audit log.

Every entry's record_hash must match its content and every prev_hash must
link to the entry before it. Defaults to audit.path from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Audit.Path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errclass.ErrConfigInvalid.WithMessage("no audit log given and audit.path is not set")
		}

		report, err := audit.VerifyChain(path)
		if err != nil {
			if errors.Is(err, errclass.ErrAuditChainBroken) {
				return &exitError{code: exitTampered, err: err}
			}
			return err
		}

		if jsonOutput {
			return outputJSON(report)
		}
		fmt.Printf("%s %d entries, head %s\n", color.Success("chain intact:"), report.Records, color.Digest(report.LastHash.ShortHash()))
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}
