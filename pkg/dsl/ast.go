package dsl

import "github.com/aretw0/verbgate/pkg/domain"

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// ValueKind identifies the shape of an argument value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindIdent
	KindRef
	KindList
	KindMap
	KindCall
)

// Value is an argument value. Only the fields relevant to Kind are set.
type Value struct {
	Kind  ValueKind
	Text  string // literal text for scalars, name for refs (without '@')
	Items []Value
	Pairs []Pair
	Call  *Call
	Pos   Pos
}

// Pair is a keyword argument.
type Pair struct {
	Key   string
	Value Value
}

// Call is a verb invocation: (verb :key value ...).
type Call struct {
	Verb domain.FQN
	Args []Pair
	Pos  Pos
}

// Program is a parsed DSL block.
type Program struct {
	Calls    []*Call
	Comments []string
}

// Verbs returns every verb called by the program, nested calls included, in source order.
func (p *Program) Verbs() []domain.FQN {
	var out []domain.FQN
	for _, c := range p.Calls {
		out = c.collect(out)
	}
	return domain.UniqueFQNs(out)
}

func (c *Call) collect(out []domain.FQN) []domain.FQN {
	out = append(out, c.Verb)
	for _, p := range c.Args {
		out = p.Value.collect(out)
	}
	return out
}

func (v Value) collect(out []domain.FQN) []domain.FQN {
	switch v.Kind {
	case KindCall:
		out = v.Call.collect(out)
	case KindList:
		for _, item := range v.Items {
			out = item.collect(out)
		}
	case KindMap:
		for _, p := range v.Pairs {
			out = p.Value.collect(out)
		}
	}
	return out
}
