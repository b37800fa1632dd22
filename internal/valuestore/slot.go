// Package valuestore implements the flat map of dotted keys to values
// plus provenance (ValueSlot) described in spec.md §3/§4.2: a case
// sensitive store with literal, dependent and composite entries, and an
// override mechanism that backs scenario overlays.
package valuestore

import (
	"regexp"
	"strings"
)

// Kind tags a ValueSlot's provenance.
type Kind int

const (
	// Literal is a concrete value with no placeholder content.
	Literal Kind = iota
	// Dependent is a string whose whole form is exactly one
	// `{{key}}` placeholder; it carries the underlying type of the
	// referenced value once resolved.
	Dependent
	// Composite mixes placeholders with literal text; it always
	// resolves to a string.
	Composite
)

// Undefined is the sentinel that erases a key (omit parameter entirely).
const Undefined = "__undefined"

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// ValueSlot is a tagged union of {Literal(v), Dependent(ref),
// Composite(template, refs)} plus the original placeholder text so it
// can be re-emitted verbatim in artifacts.
type ValueSlot struct {
	Kind Kind
	// Value is the literal value (Kind == Literal) or the resolved
	// value (once Resolve has run for Dependent/Composite slots).
	Value any
	// Template is the original placeholder text, preserved exactly so
	// the artifact builder (C8) can re-emit `{{key}}` unchanged.
	Template string
	// Refs are the dotted keys referenced by Template, in appearance
	// order.
	Refs []string
}

// NewLiteral builds a literal slot.
func NewLiteral(v any) ValueSlot {
	return ValueSlot{Kind: Literal, Value: v}
}

// ParseSlot classifies a raw string value into a Literal, Dependent or
// Composite slot, per the placeholder-expression grammar of spec.md §3.
// Non-string values are always Literal.
func ParseSlot(raw any) ValueSlot {
	s, ok := raw.(string)
	if !ok {
		return NewLiteral(raw)
	}

	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return NewLiteral(s)
	}

	// Whole-string single placeholder => Dependent.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		key := s[matches[0][2]:matches[0][3]]
		return ValueSlot{Kind: Dependent, Template: s, Refs: []string{key}}
	}

	// Otherwise composite: literal text mixed with placeholders.
	var refs []string
	for _, m := range matches {
		refs = append(refs, s[m[2]:m[3]])
	}
	return ValueSlot{Kind: Composite, Template: s, Refs: refs}
}

// Resolve substitutes every {{key}} in a Dependent/Composite slot using
// lookup, returning the resolved value (typed, for Dependent; string,
// for Composite) and reporting any missing reference as an error built
// by the caller (see Store.Resolved for the DependencyUnresolved path).
func (s ValueSlot) Resolve(lookup func(key string) (any, bool)) (any, []string, bool) {
	switch s.Kind {
	case Literal:
		return s.Value, nil, true
	case Dependent:
		v, ok := lookup(s.Refs[0])
		if !ok {
			return nil, s.Refs, false
		}
		return v, nil, true
	case Composite:
		var missing []string
		result := placeholderPattern.ReplaceAllStringFunc(s.Template, func(m string) string {
			key := m[2 : len(m)-2]
			v, ok := lookup(key)
			if !ok {
				missing = append(missing, key)
				return m
			}
			return stringify(v)
		})
		if len(missing) > 0 {
			return nil, missing, false
		}
		return result, nil, true
	}
	return nil, nil, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		var sb strings.Builder
		writeAny(&sb, t)
		return sb.String()
	}
}

func writeAny(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case float64:
		sb.WriteString(trimFloat(t))
	case bool:
		if t {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	default:
		sb.WriteString(genericString(v))
	}
}
