package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Renderer turns outcomes into terminal output.
type Renderer struct {
	glamour *glamour.TermRenderer
}

// NewRenderer returns a renderer. With rich unset, or when glamour cannot
// initialise, Render returns the plain markdown.
func NewRenderer(rich bool) *Renderer {
	r := &Renderer{}
	if rich {
		if g, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
			r.glamour = g
		}
	}
	return r
}

// Render formats view for display.
func (r *Renderer) Render(view domain.OutcomeView) (string, error) {
	md := Markdown(view)
	if r.glamour == nil {
		return md, nil
	}
	return r.glamour.Render(md)
}

// Markdown describes an outcome as markdown.
func Markdown(v domain.OutcomeView) string {
	var b strings.Builder
	switch v.Kind {
	case domain.KindDirect:
		fmt.Fprintf(&b, "## Staged `%s`\n\n", v.Verb)
		writeDSL(&b, v.DSL)
	case domain.KindMacroExpanded:
		fmt.Fprintf(&b, "## Macro `%s`\n\n", v.Macro)
		for _, verb := range v.Verbs {
			fmt.Fprintf(&b, "- `%s`\n", verb)
		}
		b.WriteString("\n")
		writeDSL(&b, v.DSL)
	case domain.KindClarifyVerb:
		b.WriteString("## Which one did you mean?\n\n")
		for _, o := range v.Options {
			label := o.Label
			if label == "" {
				label = string(o.Verb)
			}
			fmt.Fprintf(&b, "%d. %s (`%s`)\n", o.Index, label, o.Verb)
		}
		fmt.Fprintf(&b, "\nchoice `%s`\n", v.ChoiceID)
	case domain.KindNoAllowedVerbs:
		b.WriteString("## Denied\n\n")
		for _, verb := range v.Denied {
			fmt.Fprintf(&b, "- `%s`\n", verb)
		}
		if v.Reason != "" {
			fmt.Fprintf(&b, "\n> %s\n", v.Reason)
		}
	default:
		fmt.Fprintf(&b, "## Error (%s)\n\n%s\n", v.ErrorCode, v.Error)
	}
	return b.String()
}

func writeDSL(b *strings.Builder, dsl string) {
	b.WriteString("```lisp\n")
	b.WriteString(strings.TrimRight(dsl, "\n"))
	b.WriteString("\n```\n")
}
