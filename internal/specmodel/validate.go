package specmodel

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ToJSONSchemaDocument renders s as a plain JSON-Schema document
// (draft-4 shaped, what gojsonschema expects), for validating a
// synthesized body before it goes anywhere near the wire.
func ToJSONSchemaDocument(s *Schema) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	doc := map[string]any{}

	if len(s.Type) == 1 {
		doc["type"] = s.Type[0]
	} else if len(s.Type) > 1 {
		doc["type"] = s.Type
	}
	if s.Format != "" {
		doc["format"] = s.Format
	}
	if s.Pattern != "" {
		doc["pattern"] = s.Pattern
	}
	if len(s.Enum) > 0 {
		doc["enum"] = s.Enum
	}
	if s.MinLength != nil {
		doc["minLength"] = *s.MinLength
	}
	if s.MaxLength != nil {
		doc["maxLength"] = *s.MaxLength
	}
	if s.Minimum != nil {
		doc["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		doc["maximum"] = *s.Maximum
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}
	if s.Items != nil {
		doc["items"] = ToJSONSchemaDocument(s.Items)
	}
	if len(s.Properties) > 0 {
		props := map[string]any{}
		for name, prop := range s.Properties {
			props[name] = ToJSONSchemaDocument(prop)
		}
		doc["properties"] = props
	}
	switch ap := s.AdditionalProperties.(type) {
	case *Schema:
		doc["additionalProperties"] = ToJSONSchemaDocument(ap)
	case bool:
		doc["additionalProperties"] = ap
	}
	return doc
}

// ValidateAgainstSchema reports the gojsonschema validation errors of
// body against s's rendered JSON-Schema document, one message per
// failed constraint. A nil schema always validates.
func ValidateAgainstSchema(s *Schema, body any) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	schemaLoader := gojsonschema.NewGoLoader(ToJSONSchemaDocument(s))
	docLoader := gojsonschema.NewGoLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("specmodel: schema validation: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}
	return messages, nil
}
