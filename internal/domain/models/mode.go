package models

import "strings"

// Modes is the fixed set of assistant specializations a chat may be pinned to.
var Modes = []string{
	"Marketplace",
	"Inventory",
	"Work Orders",
	"Compliance",
	"Financials",
	"Purchasing",
	"Parts Analyzer",
}

// ModePlaceholder is the selector label that means "no mode"
const ModePlaceholder = "Select Modes"

// IsValidMode reports whether mode is one of Modes
func IsValidMode(mode string) bool {
	for _, m := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// NormalizeMode maps blank values and the placeholder label to nil.
func NormalizeMode(mode *string) *string {
	if mode == nil {
		return nil
	}
	m := strings.TrimSpace(*mode)
	if m == "" || m == ModePlaceholder {
		return nil
	}
	return &m
}

// ModeName returns the mode or "" when absent
func ModeName(mode *string) string {
	if mode == nil {
		return ""
	}
	return *mode
}
