package specmodel

import (
	"fmt"
	"strings"
)

// Signature renders a human-readable description of one operation's
// parameters and request-body schema, used as the "current step
// signature" input of the GenerateValid/FixValid oracle templates
// (spec.md §4.4).
func Signature(op *Operation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", op.Verb, op.PathTemplate)
	if op.Summary != "" {
		fmt.Fprintf(&b, "summary: %s\n", op.Summary)
	}

	for _, p := range op.Parameters {
		req := ""
		if p.Required {
			req = ", required"
		}
		fmt.Fprintf(&b, "param %s (%s%s): %s\n", p.Name, p.In, req, describeSchema(p.Schema))
	}

	if body := op.PrimaryRequestSchema(); body != nil {
		fmt.Fprintf(&b, "body: %s\n", describeSchema(body))
	}

	return b.String()
}

func describeSchema(s *Schema) string {
	if s == nil {
		return "any"
	}
	var b strings.Builder
	if len(s.Type) > 0 {
		b.WriteString(strings.Join(s.Type, "|"))
	} else {
		b.WriteString("object")
	}
	if s.Format != "" {
		fmt.Fprintf(&b, "<%s>", s.Format)
	}
	if len(s.Enum) > 0 {
		fmt.Fprintf(&b, " enum=%v", s.Enum)
	}
	if s.Pattern != "" {
		fmt.Fprintf(&b, " pattern=%q", s.Pattern)
	}
	if s.MinLength != nil || s.MaxLength != nil {
		fmt.Fprintf(&b, " length=[%v,%v]", derefInt(s.MinLength), derefInt(s.MaxLength))
	}
	if s.Minimum != nil || s.Maximum != nil {
		fmt.Fprintf(&b, " range=[%v,%v]", derefFloat(s.Minimum), derefFloat(s.Maximum))
	}
	if len(s.Properties) > 0 {
		b.WriteString(" {")
		for i, name := range s.PropertyOrder {
			if i > 0 {
				b.WriteString(", ")
			}
			required := ""
			for _, r := range s.Required {
				if r == name {
					required = "*"
					break
				}
			}
			fmt.Fprintf(&b, "%s%s: %s", name, required, describeSchema(s.Properties[name]))
		}
		b.WriteString("}")
	}
	if s.Items != nil {
		fmt.Fprintf(&b, "[%s]", describeSchema(s.Items))
	}
	return b.String()
}

func derefInt(p *int64) any {
	if p == nil {
		return "-"
	}
	return *p
}

func derefFloat(p *float64) any {
	if p == nil {
		return "-"
	}
	return *p
}
