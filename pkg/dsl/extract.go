package dsl

import (
	"strings"
	"unicode"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Extraction is the set of verbs a DSL block would invoke.
// When Ambiguous is true, Verbs contains domain.UnknownVerb and Fragments holds
// the pieces that could not be classified.
type Extraction struct {
	Verbs     []domain.FQN `json:"verbs"`
	Ambiguous bool         `json:"ambiguous"`
	Fragments []string     `json:"fragments,omitempty"`
	ParseErr  error        `json:"-"`
}

// Extract returns every verb src would call, including nested calls.
// It uses Parse when the block is well formed and a structural scan otherwise.
// It may over-report but never under-reports.
func Extract(src string) Extraction {
	scan := scanVerbs(src)

	prog, err := Parse(src)
	if err != nil {
		scan.ParseErr = err
		scan.Ambiguous = true
		scan.finish()
		return scan
	}

	ex := Extraction{}
	for _, v := range prog.Verbs() {
		if !v.Valid() {
			ex.Ambiguous = true
			ex.Fragments = append(ex.Fragments, string(v))
			continue
		}
		ex.Verbs = append(ex.Verbs, v)
	}
	// The scan can only add verbs the parser already saw; union anyway so a
	// parser regression widens rather than narrows the policy check.
	ex.Verbs = domain.UniqueFQNs(append(ex.Verbs, scan.Verbs...))
	ex.finish()
	return ex
}

func (e *Extraction) finish() {
	if e.Ambiguous {
		e.Verbs = domain.UniqueFQNs(append(e.Verbs, domain.UnknownVerb))
	}
}

// scanVerbs is the fallback used when the parser rejects a block. It tracks
// strings and comments, reads the head after every '(' and flags anything
// outside a call.
func scanVerbs(src string) Extraction {
	var ex Extraction
	rs := []rune(src)
	depth := 0
	inString := false
	var stray strings.Builder

	flag := func(fragment string) {
		ex.Ambiguous = true
		fragment = strings.TrimSpace(fragment)
		if fragment != "" {
			ex.Fragments = append(ex.Fragments, fragment)
		}
	}

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if inString {
			switch r {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch {
		case r == '"':
			inString = true
		case r == ';':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '(':
			if depth == 0 && stray.Len() > 0 {
				flag(stray.String())
				stray.Reset()
			}
			depth++
			j := i + 1
			for j < len(rs) && unicode.IsSpace(rs[j]) {
				j++
			}
			k := j
			for k < len(rs) && isIdentPart(rs[k]) {
				k++
			}
			head := string(rs[j:k])
			switch {
			case head == "":
				end := min(len(rs), j+16)
				flag("(" + string(rs[j:end]))
			case domain.ValidFQN(head):
				ex.Verbs = append(ex.Verbs, domain.FQN(head))
			default:
				flag(head)
			}
			i = k - 1
		case r == ')':
			depth--
			if depth < 0 {
				flag(")")
				depth = 0
			}
		case depth == 0 && (stray.Len() > 0 || !unicode.IsSpace(r)):
			stray.WriteRune(r)
		}
	}
	if stray.Len() > 0 {
		flag(stray.String())
	}
	if inString {
		flag("unterminated string")
	}
	if depth > 0 {
		flag("unbalanced parentheses")
	}
	ex.Verbs = domain.UniqueFQNs(ex.Verbs)
	return ex
}
