// Package color provides terminal color output for sealcheck verdicts.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var state struct {
	once       sync.Once
	enabled    atomic.Bool
	overridden atomic.Bool
}

// Init initializes the color system based on environment and flags. An
// earlier Enable or Disable call wins over the environment.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		if state.overridden.Load() {
			return
		}
		disabled := noColorFlag
		if _, exists := os.LookupEnv("NO_COLOR"); exists {
			disabled = true
		}
		if os.Getenv("TERM") == "dumb" {
			disabled = true
		}
		state.enabled.Store(!disabled)
	})
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	return state.enabled.Load()
}

// Disable turns off color output.
func Disable() {
	state.overridden.Store(true)
	state.enabled.Store(false)
}

// Enable turns on color output.
func Enable() {
	state.overridden.Store(true)
	state.enabled.Store(true)
}

// ANSI codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	DimCode = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

type colorFunc func(string) string

func makeColorFunc(codes ...string) colorFunc {
	code := strings.Join(codes, "")
	return func(s string) string {
		if !Enabled() {
			return s
		}
		return code + s + Reset
	}
}

var (
	Redf    = makeColorFunc(Red)
	Greenf  = makeColorFunc(Green)
	Yellowf = makeColorFunc(Yellow)
	Bluef   = makeColorFunc(Blue)
	Cyanf   = makeColorFunc(Cyan)
	Grayf   = makeColorFunc(Gray)
	Boldf   = makeColorFunc(Bold)
	Dimf    = makeColorFunc(DimCode)
)

// Success formats a success message in green.
func Success(s string) string { return Greenf(s) }

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string {
	return Greenf(fmt.Sprintf(format, args...))
}

// Error formats an error message in red.
func Error(s string) string { return Redf(s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string {
	return Redf(fmt.Sprintf(format, args...))
}

// Warning formats a warning message in yellow.
func Warning(s string) string { return Yellowf(s) }

// Info formats an informational message in cyan.
func Info(s string) string { return Cyanf(s) }

// Header formats a header in bold.
func Header(s string) string { return Boldf(s) }

// Dim formats secondary information.
func Dim(s string) string { return Dimf(s) }

// Digest formats a hash value in cyan.
func Digest(s string) string { return Cyanf(s) }

// Verdict colors a verification status: PASS green, FAIL bold red, PENDING
// yellow and ERROR gray.
func Verdict(status string) string {
	switch status {
	case "PASS":
		return Greenf(status)
	case "FAIL":
		return makeColorFunc(Bold, Red)(status)
	case "PENDING":
		return Yellowf(status)
	case "ERROR":
		return Grayf(status)
	default:
		return status
	}
}

// Severity colors a doctor finding severity.
func Severity(s string) string {
	switch s {
	case "critical", "error":
		return Redf(s)
	case "warning":
		return Yellowf(s)
	default:
		return Bluef(s)
	}
}
