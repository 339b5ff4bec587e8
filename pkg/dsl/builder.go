package dsl

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/verbgate/pkg/domain"
)

// Builder assembles a DSL program from calls.
type Builder struct {
	calls []*CallBuilder
}

// New creates an empty program builder.
func New() *Builder {
	return &Builder{}
}

// Add appends a call to the program.
func (b *Builder) Add(verb domain.FQN) *CallBuilder {
	cb := NewCall(verb)
	b.calls = append(b.calls, cb)
	return cb
}

// Build renders the program and checks that it parses.
func (b *Builder) Build() (string, error) {
	lines := make([]string, len(b.calls))
	for i, cb := range b.calls {
		lines[i] = cb.String()
	}
	src := strings.Join(lines, "\n")
	if _, err := Parse(src); err != nil {
		return "", fmt.Errorf("built program does not parse: %w", err)
	}
	return src, nil
}

// Ref marks a value as a symbol reference (@name).
type Ref string

// Ident marks a value as a bare identifier.
type Ident string

// CallBuilder renders a single call.
type CallBuilder struct {
	verb domain.FQN
	args []builtArg
}

type builtArg struct {
	key   string
	value string
}

// NewCall starts a call to verb.
func NewCall(verb domain.FQN) *CallBuilder {
	return &CallBuilder{verb: verb}
}

// Arg adds a keyword argument. Supported values: string, bool, integer and float
// kinds, Ref, Ident, *CallBuilder, slices of those and map[string]any.
// Anything else is rendered as a quoted fmt.Sprint string.
func (c *CallBuilder) Arg(key string, value any) *CallBuilder {
	c.args = append(c.args, builtArg{key: key, value: render(value)})
	return c
}

// Args adds every entry of m in key order.
func (c *CallBuilder) Args(m map[string]any) *CallBuilder {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		c.Arg(k, m[k])
	}
	return c
}

func (c *CallBuilder) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(string(c.verb))
	for _, a := range c.args {
		sb.WriteString(" :")
		sb.WriteString(a.key)
		sb.WriteByte(' ')
		sb.WriteString(a.value)
	}
	sb.WriteByte(')')
	return sb.String()
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return quote(x)
	case Ref:
		return "@" + string(x)
	case Ident:
		return string(x)
	case domain.FQN:
		return quote(string(x))
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case *CallBuilder:
		return x.String()
	case []string:
		items := make([]string, len(x))
		for i, s := range x {
			items[i] = quote(s)
		}
		return "[" + strings.Join(items, " ") + "]"
	case []any:
		items := make([]string, len(x))
		for i, s := range x {
			items[i] = render(s)
		}
		return "[" + strings.Join(items, " ") + "]"
	case map[string]any:
		parts := make([]string, 0, len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			parts = append(parts, ":"+k+" "+render(x[k]))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}

// Literal renders v as a DSL value, with the same rules as CallBuilder.Arg.
func Literal(v any) string {
	return render(v)
}
