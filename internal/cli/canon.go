package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
)

var canonLines bool

var canonCmd = &cobra.Command{
	Use:   "canon [<file>|-]",
	Short: "Print the canonical form of JSON input",
	Long: `Print the canonical form of JSON input.

Object keys are sorted, insignificant whitespace is removed and numbers and
strings get a single spelling. Two inputs with the same content print the same
bytes.

Examples:
  sealcheck canon event.json
  echo '{"b":1,"a":2}' | sealcheck canon
  sealcheck canon --lines events.ndjson`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _, err := readInput(args)
		if err != nil {
			return err
		}

		if canonLines {
			entries, err := ndjson.ReadAll(bytes.NewReader(data))
			if err != nil {
				return err
			}
			w := ndjson.NewWriter(os.Stdout)
			for _, e := range entries {
				if e.Err != nil {
					return e.Err
				}
				if err := w.Write(e.Record); err != nil {
					return err
				}
			}
			return w.Flush()
		}

		v, err := jsonutil.Parse(data)
		if err != nil {
			return err
		}
		out, err := jsonutil.Canonicalize(v)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	canonCmd.Flags().BoolVar(&canonLines, "lines", false, "treat input as NDJSON and canonicalize each record")
	rootCmd.AddCommand(canonCmd)
}
