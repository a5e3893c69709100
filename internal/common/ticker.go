// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// NormalizeTicker trims and uppercases a raw ticker symbol as entered by
// the user. It performs no validity check; pair with ValidTicker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidTicker reports whether a symbol looks like a US equity ticker:
// one to five letters, optionally followed by a dot and a one or two
// letter share-class suffix (e.g. "BRK.B").
func ValidTicker(ticker string) bool {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return false
	}

	base := ticker
	class := ""
	if idx := strings.Index(ticker, "."); idx >= 0 {
		base = ticker[:idx]
		class = ticker[idx+1:]
	}

	if len(base) < 1 || len(base) > 5 || !allLetters(base) {
		return false
	}
	if class != "" && (len(class) > 2 || !allLetters(class)) {
		return false
	}
	// A bare dot ("AAPL.") is not a valid class suffix.
	if class == "" && strings.Contains(ticker, ".") {
		return false
	}
	return true
}

func allLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
