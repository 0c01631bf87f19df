package tui

import (
	"os"

	"golang.org/x/term"
)

// Mode selects between live progress with styled reports and plain text.
type Mode int

const (
	ModeNonInteractive Mode = iota
	ModeInteractive
)

// NonInteractiveEnvVar forces plain output when set to "1".
const NonInteractiveEnvVar = "ROACHTX_NON_INTERACTIVE"

// DetectMode falls back to plain output under CI, NO_COLOR or
// ROACHTX_NON_INTERACTIVE=1, and whenever stdout or stderr is redirected:
// progress is drawn on stderr and the report goes to stdout.
func DetectMode() Mode {
	switch {
	case os.Getenv(NonInteractiveEnvVar) == "1",
		os.Getenv("CI") != "",
		os.Getenv("NO_COLOR") != "":
		return ModeNonInteractive
	case !term.IsTerminal(int(os.Stdout.Fd())), !term.IsTerminal(int(os.Stderr.Fd())):
		return ModeNonInteractive
	}
	return ModeInteractive
}

func IsInteractive() bool {
	return DetectMode() == ModeInteractive
}
