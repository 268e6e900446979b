// Package printer writes human-readable status lines to stderr. Stdout is
// reserved for CSV rows, so every diagnostic goes through here.
package printer

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	SymbolPass    = "✓"
	SymbolFail    = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"

	Indent = "  "
)

func Section(title string) {
	fmt.Fprintf(os.Stderr, "\n━━ %s ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n", title)
}

func Infof(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s%s %s\n", Indent, SymbolInfo, fmt.Sprintf(format, args...))
}

func Successf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s%s %s\n", Indent, SymbolPass, fmt.Sprintf(format, args...))
}

func Failf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s%s %s\n", Indent, SymbolFail, fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s%s %s\n", Indent, SymbolWarning, fmt.Sprintf(format, args...))
}

func Linef(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s%s\n", Indent, fmt.Sprintf(format, args...))
}

func KeyValue(key, value string) {
	fmt.Fprintf(os.Stderr, "%s%-20s %s\n", Indent, key+":", value)
}

func Rule() {
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
}

func Blank() {
	fmt.Fprintln(os.Stderr)
}

func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatMillis renders a duration as milliseconds with 3 decimal places, the
// same precision the CSV rows use.
func FormatMillis(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Nanoseconds())/1e6)
}
