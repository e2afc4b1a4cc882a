package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/digest"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/metrics"
	"github.com/qube-forensics/sealcheck/pkg/progress"
)

// readInput reads a whole file, or stdin for "-" or no argument.
func readInput(args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return data, "-", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("read input: %w", err)
	}
	return data, args[0], nil
}

// verifierFlags are the flags shared by commands that build a verifier.
type verifierFlags struct {
	hashField string
	algorithm string
}

func (f *verifierFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.hashField, "hash-field", "", "field holding the declared hash (default from config)")
	cmd.Flags().StringVar(&f.algorithm, "algorithm", "", "digest algorithm: sha256 or blake3 (default from config)")
}

// newVerifier builds a verifier from the effective config with flag
// overrides applied.
func (f *verifierFlags) newVerifier(reg *metrics.Registry, extra ...verify.Option) (*verify.Verifier, error) {
	hashField := cfg.Verify.HashField
	if f.hashField != "" {
		hashField = f.hashField
	}
	name := cfg.Verify.Algorithm
	if f.algorithm != "" {
		name = f.algorithm
	}
	alg, err := digest.ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}

	opts := []verify.Option{
		verify.WithHashField(hashField),
		verify.WithAlgorithm(alg),
		verify.WithLogger(logging.Global()),
	}
	if reg != nil {
		opts = append(opts, verify.WithMetrics(reg))
	}
	opts = append(opts, extra...)
	return verify.NewVerifier(opts...)
}

// stderrProgress returns a progress bar on stderr, or nil when stderr is not
// a terminal or output is JSON.
func stderrProgress() *progress.Terminal {
	if jsonOutput {
		return nil
	}
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return progress.NewTerminal(os.Stderr)
}
