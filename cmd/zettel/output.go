package main

import (
	"fmt"
	"os"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func paint(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

// Feedback goes to stderr; stdout carries command output only.

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiGreen, "✓ ")+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiRed, "✗ ")+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiYellow, "! ")+fmt.Sprintf(format, args...))
}

// printStatus renders one aligned row of a status report.
func printStatus(label string, format string, args ...any) {
	padded := fmt.Sprintf("%-12s", label)
	fmt.Fprintf(os.Stderr, "  %s %s\n", paint(ansiBold, padded), fmt.Sprintf(format, args...))
}
