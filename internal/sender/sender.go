// Package sender implements the request sender of spec.md §4.5: it
// turns a resolved RequestValues into a wire request over fasthttp and
// normalizes the reply into a ResponseRecord, the same role the
// teacher's fasthttp-backed tool family plays for raw HTTP execution.
// It never retries; retry policy belongs to the baseline generator.
package sender

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/blackcoderx/oasforge/internal/valuestore"
	"github.com/valyala/fasthttp"
)

// MaxCapturedArrayLen is the default array-truncation bound of spec.md
// §3, exposed as --max-captured-array-len per SPEC_FULL.md §5.
const MaxCapturedArrayLen = 10

const truncationMarker = "__truncated__"

// Sender executes planned requests against a fixed base URL.
type Sender struct {
	baseURL     string
	client      *fasthttp.Client
	timeout     time.Duration
	maxArrayLen int
}

// New builds a Sender. An empty baseURL means every Operation's path
// template is treated as already absolute.
func New(baseURL string) *Sender {
	return &Sender{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		client:      &fasthttp.Client{},
		timeout:     30 * time.Second,
		maxArrayLen: MaxCapturedArrayLen,
	}
}

// WithTimeout overrides the default 30s per-request timeout.
func (s *Sender) WithTimeout(d time.Duration) *Sender { s.timeout = d; return s }

// WithMaxArrayLen overrides the captured-response-body array
// truncation bound.
func (s *Sender) WithMaxArrayLen(n int) *Sender { s.maxArrayLen = n; return s }

// ResponseRecord is the normalized response of spec.md §3: status,
// headers, cookies, body, plus flat dotted-key views of headers and
// body for the value store.
type ResponseRecord struct {
	StatusCode int
	Headers    map[string]string
	Cookies    map[string]string
	Body       any

	FlatBody    map[string]any
	FlatHeaders map[string]any

	TransportErr error
}

// StatusClass returns the first digit of StatusCode ("2", "4", "5", ...),
// or "" on a transport failure that never produced a status.
func (r *ResponseRecord) StatusClass() string {
	if r.TransportErr != nil || r.StatusCode == 0 {
		return ""
	}
	return strconv.Itoa(r.StatusCode)[0:1]
}

// Send substitutes values into op's path/query/headers/cookies/body,
// executes the request and returns a normalized ResponseRecord. A
// transport failure (connection refused, timeout, DNS) is reported via
// ResponseRecord.TransportErr rather than a non-nil error return, since
// §4.6 treats it as "a non-2xx for retry purposes", not a hard abort.
func (s *Sender) Send(op *specmodel.Operation, values *valuestore.RequestValues) (*ResponseRecord, error) {
	path, err := substitutePath(op.PathTemplate, values.PathParams)
	if err != nil {
		return nil, fmt.Errorf("sender: %s %s: %w", op.Verb, op.PathTemplate, err)
	}

	fullURL := s.baseURL + path
	if q := encodeQuery(values.QueryParams); q != "" {
		fullURL += "?" + q
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(op.Verb)

	for name, slot := range values.Headers {
		req.Header.Set(name, renderScalar(slot))
	}
	for name, slot := range values.Cookies {
		req.Header.SetCookie(name, renderScalar(slot))
	}

	if values.HasBody {
		contentType := string(req.Header.ContentType())
		if contentType == "" {
			contentType = defaultContentType(values.BodyTree)
			req.Header.SetContentType(contentType)
		}
		body, encErr := encodeBody(contentType, values.BodyTree)
		if encErr != nil {
			return nil, fmt.Errorf("sender: encoding body: %w", encErr)
		}
		req.SetBody(body)
	}

	if err := s.client.DoTimeout(req, resp, s.timeout); err != nil {
		return &ResponseRecord{TransportErr: err}, nil
	}

	return s.buildResponseRecord(resp), nil
}

func substitutePath(template string, pathParams map[string]valuestore.ValueSlot) (string, error) {
	out := template
	for name, slot := range pathParams {
		out = strings.ReplaceAll(out, "{"+name+"}", url.PathEscape(renderScalar(slot)))
	}
	if i := strings.IndexByte(out, '{'); i != -1 {
		if j := strings.IndexByte(out[i:], '}'); j != -1 {
			return "", fmt.Errorf("unresolved path parameter in %q", out)
		}
	}
	return out, nil
}

func encodeQuery(queryParams map[string]valuestore.ValueSlot) string {
	values := url.Values{}
	for name, slot := range queryParams {
		v := renderScalar(slot)
		if isCompositeLike(v) {
			v = url.QueryEscape(v)
			values.Set(name, v)
			continue
		}
		values.Set(name, v)
	}
	return values.Encode()
}

// isCompositeLike recognizes a query value as payload-like per §4.5:
// begins with '{' or contains a reserved URI character.
func isCompositeLike(v string) bool {
	if strings.HasPrefix(v, "{") {
		return true
	}
	for _, c := range []byte{'&', '=', '#', '?', '/', '+'} {
		if strings.IndexByte(v, c) != -1 {
			return true
		}
	}
	return false
}

func defaultContentType(body any) string {
	switch body.(type) {
	case map[string]any, []any:
		return "application/json"
	default:
		return "application/json"
	}
}

func encodeBody(contentType string, body any) ([]byte, error) {
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return json.Marshal(body)
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		return encodeForm(body), nil
	default:
		if raw, ok := body.(string); ok {
			return []byte(raw), nil
		}
		if raw, ok := body.([]byte); ok {
			return raw, nil
		}
		return json.Marshal(body)
	}
}

func encodeForm(body any) []byte {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	values := url.Values{}
	for k, v := range m {
		values.Set(k, fmt.Sprintf("%v", v))
	}
	return []byte(values.Encode())
}

func renderScalar(slot valuestore.ValueSlot) string {
	if slot.Kind == valuestore.Literal {
		return fmt.Sprintf("%v", slot.Value)
	}
	return fmt.Sprintf("%v", slot.Value)
}

func (s *Sender) buildResponseRecord(resp *fasthttp.Response) *ResponseRecord {
	record := &ResponseRecord{
		StatusCode: resp.StatusCode(),
		Headers:    map[string]string{},
		Cookies:    map[string]string{},
	}

	resp.Header.VisitAll(func(key, value []byte) {
		record.Headers[string(key)] = string(value)
	})
	resp.Header.VisitAllCookie(func(key, value []byte) {
		var c fasthttp.Cookie
		if err := c.ParseBytes(value); err == nil {
			record.Cookies[string(key)] = string(c.Value())
		}
	})

	bodyBytes := resp.Body()
	var parsed any
	if len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
			parsed = string(bodyBytes)
		}
	}
	record.Body = truncateArrays(parsed, s.maxArrayLen)

	record.FlatHeaders = map[string]any{}
	for k, v := range record.Headers {
		record.FlatHeaders[k] = v
	}

	flatBody, err := specmodel.Flatten(record.Body)
	if err == nil {
		record.FlatBody = flatBody
	} else {
		record.FlatBody = map[string]any{}
	}

	return record
}

// truncateArrays walks parsed JSON and truncates any array longer than
// maxLen to its first maxLen elements plus a trailing truncation
// marker, per spec.md §3 ("first 10 with a truncation marker"). This
// makes L' the first maxLen elements of L plus one extra marker entry,
// i.e. len(L') == maxLen+1 — in tension with §8's stated invariant
// "len(L') == 10 and equals the first 10 elements of L", which a
// length-maxLen L' could only satisfy by dropping either the marker or
// one kept element. Keeping all maxLen original elements intact (so L'
// is truly a prefix of L, satisfying the "equals the first 10 elements"
// half of §8) was judged more valuable to callers than the exact
// length, since nothing downstream treats L' as needing to compare
// equal-length to some other maxLen-bounded array. §8 would need
// restating to len(L') == maxLen+1 to match this implementation.
func truncateArrays(v any, maxLen int) any {
	switch t := v.(type) {
	case []any:
		out := t
		if len(t) > maxLen {
			out = append([]any{}, t[:maxLen]...)
			out = append(out, truncationMarker)
		}
		for i, e := range out {
			out[i] = truncateArrays(e, maxLen)
		}
		return out
	case map[string]any:
		for k, e := range t {
			t[k] = truncateArrays(e, maxLen)
		}
		return t
	default:
		return v
	}
}
