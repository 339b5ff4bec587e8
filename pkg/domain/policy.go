package domain

import (
	"fmt"
	"strings"
)

// PolicyMode selects how SemReg denials are reported.
// In both modes a non-empty denied set is terminal for staging.
type PolicyMode string

const (
	// ModeStrict treats any denial as a hard failure and retires legacy surfaces entirely.
	ModeStrict PolicyMode = "strict"
	// ModePermissive reports denials at a lower severity and keeps legacy surfaces as audited tombstones.
	ModePermissive PolicyMode = "permissive"
)

// ParsePolicyMode parses a mode name. The empty string yields ModeStrict.
func ParsePolicyMode(s string) (PolicyMode, error) {
	switch PolicyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModePermissive:
		return ModePermissive, nil
	default:
		return "", fmt.Errorf("unknown policy mode %q", s)
	}
}

// SelectionSource records how the verb of a decision was chosen.
type SelectionSource string

const (
	SourceDiscovery  SelectionSource = "discovery"
	SourceUserChoice SelectionSource = "user_choice"
	SourceMacro      SelectionSource = "macro"
	SourceLegacy     SelectionSource = "legacy"
)
