package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/internal/audit"
	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/color"
	"github.com/qube-forensics/sealcheck/pkg/metrics"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

var (
	verifyOpts        verifierFlags
	verifyPayloadType string
	verifyWorkers     int
	verifyAuditLog    string
	verifyMetricsFile string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.ndjson|->",
	Short: "Verify declared hashes of telemetry records",
	Long: `Verify declared hashes of telemetry records.

Each line of the NDJSON input is one record. The hash field is removed, the
rest is canonicalized and hashed, and the digest is compared with the declared
hash. Every record gets PASS, FAIL, or ERROR when it could not be checked.

Exit status is 1 when any record FAILs, 2 when records could not be checked.

Numbers are canonicalized the JavaScript way (RFC 8785): 1.0 is written as 1
and 1e-07 as 1e-7. Producers that hash such literals verbatim, as Python's
json.dumps does, seal digests that FAIL here. Run "sealcheck doctor" on the
input to list them as precision findings.

Examples:
  sealcheck verify events.ndjson
  sealcheck verify --payload-type qube_forensic_report.v1 events.ndjson
  sealcheck verify --algorithm blake3 --hash-field seal - < events.ndjson
  sealcheck verify --audit-log verdicts.jsonl --json events.ndjson`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := metrics.NewRegistry()
		var extra []verify.Option
		bar := stderrProgress()
		if bar != nil {
			extra = append(extra, verify.WithProgress(bar.Callback()))
		}
		v, err := verifyOpts.newVerifier(reg, extra...)
		if err != nil {
			return err
		}

		entries, err := ndjson.ReadFile(args[0])
		if err != nil {
			return err
		}
		payloadType := cfg.Verify.PayloadType
		if cmd.Flags().Changed("payload-type") {
			payloadType = verifyPayloadType
		}
		entries = ndjson.FilterPayloadType(entries, payloadType)
		reg.RecordsRead.Add(float64(len(entries)))

		workers := cfg.Verify.Workers
		if cmd.Flags().Changed("workers") {
			workers = verifyWorkers
		}
		report := v.VerifyEntries(cmd.Context(), entries, workers)
		if bar != nil {
			bar.Finish()
		}

		auditPath := cfg.Audit.Path
		if verifyAuditLog != "" {
			auditPath = verifyAuditLog
		}
		if auditPath != "" {
			appender, err := audit.NewFileAppender(auditPath)
			if err != nil {
				return err
			}
			if err := appender.AppendReport(args[0], report); err != nil {
				return fmt.Errorf("audit log: %w", err)
			}
		}

		metricsFile := cfg.Metrics.Textfile
		if verifyMetricsFile != "" {
			metricsFile = verifyMetricsFile
		}
		if metricsFile != "" {
			if err := reg.WriteTextfile(metricsFile); err != nil {
				return err
			}
		}

		if jsonOutput {
			if err := outputJSON(report); err != nil {
				return err
			}
		} else {
			printReport(v, report)
		}

		switch {
		case report.Tampered():
			return &exitError{code: exitTampered}
		case report.Errored > 0:
			return &exitError{code: exitToolError}
		}
		return nil
	},
}

func printReport(v *verify.Verifier, report *verify.Report) {
	for _, out := range report.Outcomes {
		status := out.Status()
		fmt.Printf("line %-5d %s", out.Line, color.Verdict(string(status)))
		switch status {
		case model.StatusPass:
			fmt.Printf("  %s", color.Digest(out.Result.ComputedDigest.ShortHash()))
			if out.Result.EventKey != "" {
				fmt.Printf("  %s", out.Result.EventKey)
			}
		case model.StatusFail:
			fmt.Printf("  declared %s computed %s",
				color.Digest(out.Result.DeclaredHash.ShortHash()),
				color.Digest(out.Result.ComputedDigest.ShortHash()))
			if out.Result.EventKey != "" {
				fmt.Printf("  %s", out.Result.EventKey)
			}
		default:
			fmt.Printf("  %s", color.Dim(out.Error))
		}
		fmt.Println()
	}
	fmt.Printf("%d records (%s, %s): %s, %s, %s\n",
		len(report.Outcomes), v.HashField(), v.Algorithm(),
		color.Successf("%d passed", report.Passed),
		color.Errorf("%d failed", report.Failed),
		color.Warning(fmt.Sprintf("%d errors", report.Errored)))
}

func init() {
	verifyOpts.register(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyPayloadType, "payload-type", "", "only verify records with this payloadType")
	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", 4, "records verified concurrently")
	verifyCmd.Flags().StringVar(&verifyAuditLog, "audit-log", "", "append verdicts to this hash-chained JSONL log")
	verifyCmd.Flags().StringVar(&verifyMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.AddCommand(verifyCmd)
}
