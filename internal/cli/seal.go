package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/internal/audit"
	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/internal/seal"
	"github.com/qube-forensics/sealcheck/pkg/fsutil"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

var (
	sealOpts   verifierFlags
	sealOutput string
)

var sealCmd = &cobra.Command{
	Use:   "seal [<file.ndjson>|-]",
	Short: "Compute and embed the hash field of telemetry records",
	Long: `Compute and embed the hash field of telemetry records.

Every record is written back as a canonical line with the hash field set to
the digest of the rest of the record. An existing hash is replaced.

Examples:
  sealcheck seal raw.ndjson > sealed.ndjson
  sealcheck seal -o sealed.ndjson raw.ndjson`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, source, err := readInput(args)
		if err != nil {
			return err
		}
		v, err := sealOpts.newVerifier(nil)
		if err != nil {
			return err
		}
		entries, err := ndjson.ReadAll(bytes.NewReader(data))
		if err != nil {
			return err
		}

		var appender *audit.FileAppender
		if cfg.Audit.Path != "" {
			if appender, err = audit.NewFileAppender(cfg.Audit.Path); err != nil {
				return err
			}
		}

		var out io.Writer = os.Stdout
		var pending *fsutil.PendingFile
		if sealOutput != "" {
			pending, err = fsutil.Create(sealOutput, 0o644)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer pending.Abort()
			out = pending
		}

		sealer := seal.New(v)
		w := ndjson.NewWriter(out)
		var events []*model.AuditRecord
		for _, e := range entries {
			if e.Err != nil {
				return e.Err
			}
			sealed, sum, err := sealer.Seal(e.Record)
			if err != nil {
				return err
			}
			if err := w.Write(sealed); err != nil {
				return err
			}
			logging.Debug("record sealed", map[string]any{"line": e.Line, "digest": string(sum)})
			events = append(events, &model.AuditRecord{
				EventType:      model.EventTypeSeal,
				Source:         source,
				Line:           e.Line,
				EventKey:       sealed.EventKey(),
				Status:         model.StatusPass,
				DeclaredHash:   sum,
				ComputedDigest: sum,
			})
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if pending != nil {
			if err := pending.Commit(); err != nil {
				return err
			}
		}

		if appender != nil {
			if err := appender.AppendAll(events); err != nil {
				return fmt.Errorf("audit log: %w", err)
			}
		}
		return nil
	},
}

func init() {
	sealOpts.register(sealCmd)
	sealCmd.Flags().StringVarP(&sealOutput, "output", "o", "", "write sealed records to this file instead of stdout")
	rootCmd.AddCommand(sealCmd)
}
