// Package artifact implements the artifact builder of spec.md §4.8: for
// each scenario it emits one independent, runner-executable
// postman.Collection with a baseUrl preamble and one Item per plan
// step, wiring collection-variable bindings and assertions the same
// way RESTifAI's postman_collection_builder.py does (transliterated,
// not translated, into the teacher's Go idiom).
package artifact

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/blackcoderx/oasforge/internal/baseline"
	"github.com/blackcoderx/oasforge/internal/negative"
	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/blackcoderx/oasforge/internal/valuestore"
	postman "github.com/rbretecher/go-postman-collection"
)

// Build renders one scenario's ReplayArtifact as a Postman v2.1
// collection. flow supplies the step order (label, verb, path
// template); scenario supplies the (possibly overlaid) concrete values.
func Build(flow *baseline.OperationFlow, scenario negative.Scenario, baseURL string) (*postman.Collection, error) {
	description := scenario.Description
	if flow.UsageGuide != "" {
		description += "\n\nUsage guide: " + flow.UsageGuide
	}
	collection := postman.CreateCollection(scenario.Name, description)
	collection.Events = []*postman.Event{
		{
			Listen: "prerequest",
			Script: &postman.Script{
				Type: "text/javascript",
				Exec: []string{fmt.Sprintf("pm.collectionVariables.set('baseUrl', '%s');", jsEscape(baseURL))},
			},
		},
	}

	for _, execution := range flow.Executions {
		item, err := buildItem(execution, scenario.Values)
		if err != nil {
			return nil, fmt.Errorf("artifact: building step %s: %w", execution.Label, err)
		}
		collection.AddItem(item)
	}

	return collection, nil
}

func buildItem(execution baseline.OperationExecution, values *valuestore.Store) (*postman.Items, error) {
	label := execution.Label
	requestPrefix := label + ".request."

	keys := keysWithPrefix(values, requestPrefix)

	item := postman.CreateItem(postman.Item{
		Name: label,
		Request: &postman.Request{
			Method: postman.Method(execution.Verb),
			URL:    buildURL(execution, label, keys),
			Header: buildHeaders(label, keys),
		},
	})

	if body := buildBody(label, keys); body != nil {
		item.Request.Body = body
	}

	item.Events = []*postman.Event{
		{Listen: "prerequest", Script: &postman.Script{Type: "text/javascript", Exec: prerequestScript(label, keys, values)}},
		{Listen: "test", Script: &postman.Script{Type: "text/javascript", Exec: testScript(label, values)}},
	}

	return item, nil
}

func keysWithPrefix(values *valuestore.Store, prefix string) []string {
	var out []string
	for _, k := range values.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func buildURL(execution baseline.OperationExecution, label string, keys []string) *postman.URL {
	path := execution.PathTemplate
	pathPrefix := label + ".request.path_params."
	for _, k := range keys {
		if !strings.HasPrefix(k, pathPrefix) {
			continue
		}
		name := strings.TrimPrefix(k, pathPrefix)
		path = strings.ReplaceAll(path, "{"+name+"}", "{{"+k+"}}")
	}

	raw := "{{baseUrl}}" + path

	var query []*postman.QueryParam
	queryPrefix := label + ".request.query_params."
	for _, k := range keys {
		if !strings.HasPrefix(k, queryPrefix) {
			continue
		}
		name := strings.TrimPrefix(k, queryPrefix)
		query = append(query, &postman.QueryParam{Key: name, Value: "{{" + k + "}}"})
	}
	if len(query) > 0 {
		var parts []string
		for _, q := range query {
			parts = append(parts, q.Key+"="+q.Value)
		}
		raw += "?" + strings.Join(parts, "&")
	}

	return &postman.URL{Raw: raw, Query: query}
}

func buildHeaders(label string, keys []string) []*postman.Header {
	var headers []*postman.Header
	headerPrefix := label + ".request.headers."
	for _, k := range keys {
		if !strings.HasPrefix(k, headerPrefix) {
			continue
		}
		name := strings.TrimPrefix(k, headerPrefix)
		headers = append(headers, &postman.Header{Key: name, Value: "{{" + k + "}}"})
	}
	return headers
}

func buildBody(label string, keys []string) *postman.Body {
	bodyPrefix := label + ".request.body"
	var bodyKeys []string
	for _, k := range keys {
		if k == bodyPrefix || strings.HasPrefix(k, bodyPrefix+".") || strings.HasPrefix(k, bodyPrefix+"[") {
			bodyKeys = append(bodyKeys, k)
		}
	}
	if len(bodyKeys) == 0 {
		return nil
	}

	skeleton := map[string]any{}
	hasStructure := false
	for _, k := range bodyKeys {
		if k == bodyPrefix {
			continue
		}
		path := strings.TrimPrefix(k, bodyPrefix+".")
		skeleton[path] = "{{" + k + "}}"
		hasStructure = true
	}

	var raw string
	if hasStructure {
		tree, err := specmodel.Unflatten(skeleton)
		if err != nil {
			tree = skeleton
		}
		b, _ := json.MarshalIndent(tree, "", "  ")
		raw = unquoteTemplates(string(b))
	} else {
		raw = "{{" + bodyPrefix + "}}"
	}

	return &postman.Body{Mode: "raw", Raw: raw}
}

func prerequestScript(label string, keys []string, values *valuestore.Store) []string {
	lines := []string{"let template = '';"}
	for _, k := range keys {
		slot, ok := values.Slot(k)
		if !ok {
			continue
		}
		switch slot.Kind {
		case valuestore.Literal:
			lines = append(lines, fmt.Sprintf("pm.collectionVariables.set('%s', %s);", k, jsLiteral(slot.Value)))
		case valuestore.Dependent:
			lines = append(lines, fmt.Sprintf("pm.collectionVariables.set('%s', pm.collectionVariables.get('%s'));", k, slot.Refs[0]))
		case valuestore.Composite:
			lines = append(lines, fmt.Sprintf("template = `%s`;", jsTemplateLiteral(slot.Template)))
			for _, ref := range slot.Refs {
				lines = append(lines, fmt.Sprintf("template = template.split('{{%s}}').join(pm.collectionVariables.get('%s'));", ref, ref))
			}
			lines = append(lines, fmt.Sprintf("pm.collectionVariables.set('%s', template);", k))
		}
	}
	return lines
}

// getValueByPathJS is the dotted-path response-body lookup helper,
// transliterated from RESTifAI's GET_RESPONSE_BODY_VALUE_JS_FUNCTION.
var getValueByPathJS = []string{
	"function getValueByPath(obj, path) {",
	"    const parts = [];",
	"    let current = '';",
	"    let inBracket = false;",
	"    for (let i = 0; i < path.length; i++) {",
	"        const c = path[i];",
	"        if (c === '.' && !inBracket) {",
	"            if (current) parts.push(current);",
	"            current = '';",
	"        } else if (c === '[') {",
	"            inBracket = true;",
	"            if (current) parts.push(current);",
	"            current = '[';",
	"        } else if (c === ']') {",
	"            inBracket = false;",
	"            current += ']';",
	"            parts.push(current);",
	"            current = '';",
	"        } else {",
	"            current += c;",
	"        }",
	"    }",
	"    if (current) parts.push(current);",
	"    let node = obj;",
	"    for (const part of parts) {",
	"        if (node === undefined || node === null) return undefined;",
	"        if (part.startsWith('[') && part.endsWith(']')) {",
	"            const idx = parseInt(part.substring(1, part.length - 1), 10);",
	"            node = Array.isArray(node) ? node[idx] : undefined;",
	"        } else {",
	"            node = node[part];",
	"        }",
	"    }",
	"    return node;",
	"}",
}

func testScript(label string, values *valuestore.Store) []string {
	statusKey := label + ".response.status_code"
	expectedClass := "2"
	if v, ok := values.Placeholder(statusKey); ok {
		if code, ok := toInt(v); ok && code >= 400 && code <= 499 {
			expectedClass = "4"
		}
	}

	if expectedClass == "4" {
		return []string{
			"pm.test('status code is 4xx', function () {",
			"    pm.expect(pm.response.code).to.be.within(400, 499);",
			"});",
		}
	}

	lines := []string{
		"pm.test('status code is 2xx', function () {",
		"    pm.expect(pm.response.code).to.be.within(200, 299);",
		"});",
		"",
	}

	bodyPrefix := label + ".response.body."
	var bodyFields []string
	for _, k := range keysWithPrefix(values, bodyPrefix) {
		bodyFields = append(bodyFields, strings.TrimPrefix(k, bodyPrefix))
	}

	lines = append(lines, getValueByPathJS...)
	lines = append(lines, "try {", "    const responseJson = pm.response.json();")
	for i, field := range bodyFields {
		lines = append(lines,
			fmt.Sprintf("    const v%d = getValueByPath(responseJson, '%s');", i, jsEscape(field)),
			fmt.Sprintf("    if (v%d !== undefined) pm.collectionVariables.set('%s%s', v%d);", i, bodyPrefix, field, i),
		)
	}
	lines = append(lines,
		"    pm.response.headers.each(function (header) {",
		fmt.Sprintf("        pm.collectionVariables.set('%s.response.headers.' + header.key, header.value);", label),
		"    });",
		fmt.Sprintf("    pm.collectionVariables.set('%s', pm.response.code);", statusKey),
		"} catch (e) {",
		"    console.error('failed to process response', e.message);",
		"}",
	)
	return lines
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		var n int
		if _, err := fmt.Sscanf(t, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func jsEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

func jsTemplateLiteral(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "`", "\\`")
	return s
}

func jsLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64, int:
		return fmt.Sprintf("%v", t)
	case string:
		return "'" + jsEscape(t) + "'"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "null"
		}
		return string(b)
	}
}

// unquoteTemplates strips the quotes json.Marshal put around each
// "{{key}}" placeholder string so the emitted JSON skeleton carries a
// live Postman template reference rather than a literal string.
func unquoteTemplates(rendered string) string {
	var b strings.Builder
	for i := 0; i < len(rendered); {
		if rendered[i] == '"' {
			j := i + 1
			for j < len(rendered) && rendered[j] != '"' {
				j++
			}
			inner := rendered[i+1 : j]
			if strings.HasPrefix(inner, "{{") && strings.HasSuffix(inner, "}}") {
				b.WriteString(inner)
			} else {
				b.WriteString(rendered[i : j+1])
			}
			i = j + 1
			continue
		}
		b.WriteByte(rendered[i])
		i++
	}
	return b.String()
}
