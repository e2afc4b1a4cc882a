package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/pkg/digest"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

var (
	digestAlgorithm string
	digestExclude   string
)

type digestOutput struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
	Canonical string `json:"canonical"`
}

var digestCmd = &cobra.Command{
	Use:   "digest [<file>|-]",
	Short: "Print the digest of the canonical form of JSON input",
	Long: `Print the digest of the canonical form of JSON input.

With --exclude the named top-level key is dropped first, which reproduces the
digest a sealer would store under that key.

Examples:
  sealcheck digest event.json
  sealcheck digest --exclude canonicalHash event.json
  sealcheck digest --algorithm blake3 -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _, err := readInput(args)
		if err != nil {
			return err
		}
		name := cfg.Verify.Algorithm
		if digestAlgorithm != "" {
			name = digestAlgorithm
		}
		alg, err := digest.ParseAlgorithm(name)
		if err != nil {
			return err
		}

		v, err := jsonutil.Parse(data)
		if err != nil {
			return err
		}
		if digestExclude != "" {
			rec, ok := model.NewRecord(v, 0)
			if !ok {
				return fmt.Errorf("--exclude needs an object, input is %s", v.Kind())
			}
			v = rec.Without(digestExclude).Value()
		}

		canonical, err := jsonutil.Canonicalize(v)
		if err != nil {
			return err
		}
		sum, err := digest.Hex(alg, []byte(canonical))
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(digestOutput{Algorithm: string(alg), Digest: sum, Canonical: canonical})
		}
		fmt.Println(sum)
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVar(&digestAlgorithm, "algorithm", "", "digest algorithm: sha256 or blake3 (default from config)")
	digestCmd.Flags().StringVar(&digestExclude, "exclude", "", "top-level key to drop before hashing")
	rootCmd.AddCommand(digestCmd)
}
