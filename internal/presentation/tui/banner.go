package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/aretw0/verbgate/pkg/domain"
)

// PrintBanner writes the REPL banner and the active policy identity to w.
func PrintBanner(w io.Writer, mode domain.PolicyMode, fingerprint string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{"                 _                 _       ", "#818cf8"},
		{" __   _____ _ __| |__   __ _  __ _| |_ ___ ", "#a78bfa"},
		{" \\ \\ / / _ \\ '__| '_ \\ / _` |/ _` | __/ _ \\", "#c084fc"},
		{"  \\ V /  __/ |  | |_) | (_| | (_| | ||  __/", "#e879f9"},
		{"   \\_/ \\___|_|  |_.__/ \\__, |\\__,_|\\__\\___|", "#f472b6"},
		{"                       |___/               ", "#fb7185"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  policy %s  %s\n\n", Status(out, string(mode)), out.String(fingerprint).Faint())
}

// Status colours an outcome kind or policy mode for terminal output.
func Status(out *termenv.Output, s string) termenv.Style {
	style := out.String(s).Bold()
	switch s {
	case domain.KindDirect, domain.KindMacroExpanded, string(domain.ModeStrict):
		return style.Foreground(out.Color("#22c55e"))
	case domain.KindClarifyVerb, string(domain.ModePermissive):
		return style.Foreground(out.Color("#eab308"))
	case domain.KindNoAllowedVerbs, domain.KindFailure:
		return style.Foreground(out.Color("#ef4444"))
	default:
		return style
	}
}
