package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/motionrelay/internal/ui"
)

var (
	// Unindented lines ending in ":" ("Readings:", "Flags:").
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)
	// Two-space indent, a command name, then the description gap.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)
	// Flag type annotations such as "--url string".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(string|int|float|duration|strings)\b`)
	reDefault  = regexp.MustCompile(`\(default [^)]*\)`)
)

// colorizedHelpFunc renders cobra's usage text with ANSI styling when stdout
// supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	s = reGroupHeader.ReplaceAllStringFunc(s, func(m string) string {
		return ui.RenderAccent(strings.TrimSpace(m))
	})
	s = reCommand.ReplaceAllString(s, "$1"+ui.RenderAxis("z", "$2")+"$3")
	s = reFlagType.ReplaceAllString(s, "$1"+ui.RenderMuted("$2"))
	return reDefault.ReplaceAllStringFunc(s, ui.RenderMuted)
}
