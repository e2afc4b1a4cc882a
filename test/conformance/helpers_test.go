//go:build conformance

package conformance

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var sealcheckBinary string

func init() {
	// Walk up to find bin/sealcheck
	cwd, _ := os.Getwd()
	for {
		binPath := filepath.Join(cwd, "bin", "sealcheck")
		if _, err := os.Stat(binPath); err == nil {
			sealcheckBinary = binPath
			return
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	// Fallback to PATH
	sealcheckBinary = "sealcheck"
}

// runSealcheck executes the binary in dir with stdin as input.
func runSealcheck(t *testing.T, dir, stdin string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(sealcheckBinary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "SEALCHECK_LOG_LEVEL=error")
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("run sealcheck: %v", err)
		}
	}
	return
}

// writeNDJSON writes lines as an NDJSON file in dir and returns its path.
func writeNDJSON(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// sealFile seals in into out and fails the test on a non-zero exit.
func sealFile(t *testing.T, dir, in, out string, extra ...string) []string {
	t.Helper()
	args := append([]string{"seal", "-o", out}, extra...)
	args = append(args, in)
	_, stderr, code := runSealcheck(t, dir, "", args...)
	if code != 0 {
		t.Fatalf("seal exited %d: %s", code, stderr)
	}
	data, err := os.ReadFile(filepath.Join(dir, out))
	if err != nil {
		t.Fatalf("read sealed output: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
