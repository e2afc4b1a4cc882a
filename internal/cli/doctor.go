package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/internal/doctor"
	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/pkg/color"
)

var (
	doctorOpts   verifierFlags
	doctorStrict bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor <file.ndjson|->",
	Short: "Check telemetry records for canonicalization hazards",
	Long: `Check telemetry records for canonicalization hazards.

Reports records that cannot be verified and content that different producers
may canonicalize differently: non-NFC strings, integers beyond 2^53, number
literals with more than one spelling, malformed or repeated declared hashes.
Use --strict to also verify every record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := doctorOpts.newVerifier(nil)
		if err != nil {
			return err
		}
		entries, err := ndjson.ReadFile(args[0])
		if err != nil {
			return err
		}

		result := doctor.NewDoctor(v, cfg.Verify.PayloadType).Check(cmd.Context(), entries, doctorStrict)

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Printf("%d records, no findings.\n", result.Records)
		} else {
			fmt.Printf("Findings (%d) in %d records:\n", len(result.Findings), result.Records)
			for _, f := range result.Findings {
				loc := fmt.Sprintf("line %d", f.Line)
				if f.Path != "" {
					loc += " " + f.Path
				}
				fmt.Printf("  [%s] %s: %s (%s)\n", color.Severity(f.Severity), f.Category, f.Description, color.Dim(loc))
			}
		}

		if !result.Healthy {
			return &exitError{code: exitTampered}
		}
		return nil
	},
}

func init() {
	doctorOpts.register(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "include full integrity verification")
	rootCmd.AddCommand(doctorCmd)
}
