package specmodel

import (
	"fmt"
	"strings"

	"github.com/pb33f/libopenapi"
	base "github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// ErrSpecInvalid is the SpecInvalid error kind of spec.md §7: the loader
// failed to parse the document or could not resolve a $ref.
type ErrSpecInvalid struct {
	Reason string
	Err    error
}

func (e *ErrSpecInvalid) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spec invalid: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("spec invalid: %s", e.Reason)
}

func (e *ErrSpecInvalid) Unwrap() error { return e.Err }

// Load parses raw OpenAPI 3.x document bytes into a SpecModel. $refs are
// resolved by libopenapi's own index; a visited-schema stack additionally
// guards against cyclic object schemas (self-referential trees, linked
// lists) which libopenapi's high-level model would otherwise recurse
// through forever when flattened to a Schema tree. Cycles are cut with a
// sentinel leaf rather than failing the whole load, per DESIGN NOTES §9.
func Load(content []byte) (*SpecModel, error) {
	document, err := libopenapi.NewDocument(content)
	if err != nil {
		return nil, &ErrSpecInvalid{Reason: "could not parse document", Err: err}
	}

	model, errs := document.BuildV3Model()
	if len(errs) > 0 {
		return nil, &ErrSpecInvalid{Reason: "could not build v3 model", Err: errs[0]}
	}
	if model == nil {
		return nil, &ErrSpecInvalid{Reason: "empty v3 model"}
	}

	l := &loader{seen: map[*base.Schema]bool{}}

	spec := &SpecModel{BaseURL: l.preferredBaseURL(model.Model.Servers)}

	if model.Model.Paths == nil || model.Model.Paths.PathItems == nil {
		return spec, nil
	}

	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()

		for verb, op := range map[string]*v3.Operation{
			"GET": item.Get, "POST": item.Post, "PUT": item.Put,
			"DELETE": item.Delete, "PATCH": item.Patch,
			"HEAD": item.Head, "OPTIONS": item.Options,
		} {
			if op == nil {
				continue
			}
			parsed, err := l.convertOperation(verb, path, op, item.Parameters)
			if err != nil {
				return nil, &ErrSpecInvalid{Reason: fmt.Sprintf("%s %s", verb, path), Err: err}
			}
			spec.Operations = append(spec.Operations, *parsed)
		}
	}

	if err := spec.validateUnique(); err != nil {
		return nil, &ErrSpecInvalid{Reason: "operation ids", Err: err}
	}
	return spec, nil
}

type loader struct {
	seen map[*base.Schema]bool
}

func (l *loader) preferredBaseURL(servers []*v3.Server) string {
	if len(servers) == 0 {
		return ""
	}
	return strings.TrimSuffix(servers[0].URL, "/")
}

func (l *loader) convertOperation(verb, path string, op *v3.Operation, shared []*v3.Parameter) (*Operation, error) {
	opID := op.OperationId
	if opID == "" {
		opID = fmt.Sprintf("%s_%s", strings.ToLower(verb), sanitizeOpID(path))
	}

	out := &Operation{
		OpID:         opID,
		Verb:         verb,
		PathTemplate: path,
		Summary:      op.Summary,
		RequestBody:  map[string]*Schema{},
		Responses:    map[string]*Schema{},
	}

	for _, p := range append(append([]*v3.Parameter{}, shared...), op.Parameters...) {
		param := Parameter{
			Name:     p.Name,
			In:       ParamLocation(p.In),
			Required: p.Required != nil && *p.Required,
		}
		if p.Schema != nil {
			param.Schema = l.convertSchemaProxy(p.Schema)
		}
		out.Parameters = append(out.Parameters, param)
	}

	if op.RequestBody != nil && op.RequestBody.Content != nil {
		for pair := op.RequestBody.Content.First(); pair != nil; pair = pair.Next() {
			mediaType := pair.Key()
			mt := pair.Value()
			if mt == nil || mt.Schema == nil {
				continue
			}
			out.RequestBody[mediaType] = l.convertSchemaProxy(mt.Schema)
		}
	}

	if op.Responses != nil && op.Responses.Codes != nil {
		for pair := op.Responses.Codes.First(); pair != nil; pair = pair.Next() {
			status := pair.Key()
			resp := pair.Value()
			if resp == nil || resp.Content == nil {
				continue
			}
			for mtPair := resp.Content.First(); mtPair != nil; mtPair = mtPair.Next() {
				if mtPair.Value() == nil || mtPair.Value().Schema == nil {
					continue
				}
				out.Responses[status] = l.convertSchemaProxy(mtPair.Value().Schema)
				break
			}
		}
	}

	return out, nil
}

func (l *loader) convertSchemaProxy(proxy *base.SchemaProxy) *Schema {
	if proxy == nil {
		return nil
	}
	schema := proxy.Schema()
	if schema == nil {
		return &Schema{Type: []string{"object"}}
	}
	return l.convertSchema(schema)
}

// cyclicSentinel is substituted for any schema object reached a second
// time along the same resolution path.
var cyclicSentinel = &Schema{Type: []string{"object"}, AdditionalProperties: true}

func (l *loader) convertSchema(s *base.Schema) *Schema {
	if s == nil {
		return nil
	}
	if l.seen[s] {
		return cyclicSentinel
	}
	l.seen[s] = true
	defer delete(l.seen, s)

	out := &Schema{
		Type:     append([]string{}, s.Type...),
		Format:   s.Format,
		Required: append([]string{}, s.Required...),
		Pattern:  s.Pattern,
	}
	if s.Nullable != nil {
		out.Nullable = *s.Nullable
	}
	if s.MinLength != nil {
		out.MinLength = s.MinLength
	}
	if s.MaxLength != nil {
		out.MaxLength = s.MaxLength
	}
	if s.Minimum != nil {
		out.Minimum = s.Minimum
	}
	if s.Maximum != nil {
		out.Maximum = s.Maximum
	}
	for _, e := range s.Enum {
		if e == nil {
			continue
		}
		out.Enum = append(out.Enum, e.Value)
	}

	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, s.Properties.Len())
		for pair := s.Properties.First(); pair != nil; pair = pair.Next() {
			name := pair.Key()
			out.PropertyOrder = append(out.PropertyOrder, name)
			out.Properties[name] = l.convertSchemaProxy(pair.Value())
		}
	}

	if s.Items != nil && s.Items.IsA() {
		out.Items = l.convertSchemaProxy(s.Items.A)
	}

	if s.AdditionalProperties != nil {
		if s.AdditionalProperties.IsA() {
			out.AdditionalProperties = l.convertSchemaProxy(s.AdditionalProperties.A)
		} else {
			out.AdditionalProperties = s.AdditionalProperties.B
		}
	}

	return out
}

func sanitizeOpID(path string) string {
	var sb strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return strings.Trim(sb.String(), "_")
}
