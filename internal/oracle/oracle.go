// Package oracle implements the LLM oracle and prompt registry of
// spec.md §4.4: a single synchronous ask(prompt, wantJson) -> text
// interface with a deterministic cache, token/cost accounting, and the
// bounded-retry/JSON-extraction contract every prompt template relies
// on.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Kind distinguishes the oracle failure taxonomy of spec.md §7.
type Kind int

const (
	KindUnavailable Kind = iota
	KindTimeout
	KindMalformed
)

// Error is the distinguishable oracle error kind surfaced to callers.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("oracle: timeout: %v", e.Err)
	case KindMalformed:
		return fmt.Sprintf("oracle: malformed output: %v", e.Err)
	default:
		return fmt.Sprintf("oracle: unavailable: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Transport is the text-in/text-out LLM backend, treated as a black box
// per spec.md §1. Implementations return the full completion text plus
// prompt/completion token counts.
type Transport interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (text string, promptTokens, completionTokens int, err error)
	ModelID() string
}

// Accounting is the mutex-protected token/cost counter threaded
// explicitly through the oracle rather than kept as global ambient
// state (DESIGN NOTES §9).
type Accounting struct {
	mu                sync.Mutex
	promptTokens      int
	completionTokens  int
	costUSD           float64
	costPerKTokenIn   float64
	costPerKTokenOut  float64
}

// NewAccounting builds a counter with a known per-1k-token cost; pass
// zero values when the model's unit cost is unknown (cost stays 0).
func NewAccounting(costPerKTokenIn, costPerKTokenOut float64) *Accounting {
	return &Accounting{costPerKTokenIn: costPerKTokenIn, costPerKTokenOut: costPerKTokenOut}
}

func (a *Accounting) record(promptTokens, completionTokens int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.promptTokens += promptTokens
	a.completionTokens += completionTokens
	a.costUSD += float64(promptTokens) / 1000 * a.costPerKTokenIn
	a.costUSD += float64(completionTokens) / 1000 * a.costPerKTokenOut
}

// Snapshot is a point-in-time read of the accounting counters.
type Snapshot struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Snapshot returns the current totals.
func (a *Accounting) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		PromptTokens:     a.promptTokens,
		CompletionTokens: a.completionTokens,
		TotalTokens:      a.promptTokens + a.completionTokens,
		CostUSD:          a.costUSD,
	}
}

// cacheEntry is a single cached completion.
type cacheEntry struct {
	text string
}

// Oracle wraps a Transport with the deterministic cache, accounting and
// bounded retry/extraction contract of spec.md §4.4.
type Oracle struct {
	transport   Transport
	accounting  *Accounting
	temperature float64
	maxTokens   int
	timeout     time.Duration
	maxRetries  int

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithTimeout overrides the default 60s per-call timeout.
func WithTimeout(d time.Duration) Option { return func(o *Oracle) { o.timeout = d } }

// WithMaxRetries overrides the default retry budget of 3.
func WithMaxRetries(n int) Option { return func(o *Oracle) { o.maxRetries = n } }

// WithTemperature sets the generation temperature (default 0, i.e.
// deterministic low-temperature generation per spec.md §4.4).
func WithTemperature(t float64) Option { return func(o *Oracle) { o.temperature = t } }

// WithMaxTokens bounds completion length.
func WithMaxTokens(n int) Option { return func(o *Oracle) { o.maxTokens = n } }

// New builds an Oracle over the given Transport.
func New(transport Transport, accounting *Accounting, opts ...Option) *Oracle {
	o := &Oracle{
		transport:   transport,
		accounting:  accounting,
		temperature: 0,
		maxTokens:   4096,
		timeout:     60 * time.Second,
		maxRetries:  3,
		cache:       map[string]cacheEntry{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Oracle) cacheKey(systemPrompt, userPrompt string, wantJSON bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%v\x00%s\x00%.3f\x00%d",
		systemPrompt, userPrompt, wantJSON, o.transport.ModelID(), o.temperature, o.maxTokens)
	return hex.EncodeToString(h.Sum(nil))
}

// Ask is the single synchronous ask(prompt, wantJson) -> text interface
// of spec.md §4.4. It caches deterministically, accounts tokens, and on
// malformed JSON output (when wantJSON is true) retries up to
// maxRetries times, feeding the offending raw text and parse error back
// as additional context for the next attempt.
func (o *Oracle) Ask(ctx context.Context, systemPrompt, userPrompt string, wantJSON bool) (string, error) {
	key := o.cacheKey(systemPrompt, userPrompt, wantJSON)

	o.mu.Lock()
	if entry, ok := o.cache[key]; ok {
		o.mu.Unlock()
		return entry.text, nil
	}
	o.mu.Unlock()

	attemptPrompt := userPrompt
	var lastErr error

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		text, promptTok, completionTok, err := o.transport.Complete(callCtx, systemPrompt, attemptPrompt, o.temperature, o.maxTokens)
		cancel()

		if o.accounting != nil {
			o.accounting.record(promptTok, completionTok)
		}

		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return "", &Error{Kind: KindTimeout, Err: err}
			}
			lastErr = &Error{Kind: KindUnavailable, Err: err}
			continue
		}

		if !wantJSON {
			o.setCache(key, text)
			return text, nil
		}

		extracted, perr := ExtractJSON(text)
		if perr == nil {
			o.setCache(key, extracted)
			return extracted, nil
		}

		lastErr = &Error{Kind: KindMalformed, Err: perr}
		attemptPrompt = fmt.Sprintf(
			"%s\n\nYour previous response could not be parsed as JSON.\nPrevious response:\n%s\n\nParse error: %v\nRespond again with ONLY valid JSON matching the requested shape.",
			userPrompt, text, perr,
		)
	}

	return "", lastErr
}

func (o *Oracle) setCache(key, text string) {
	o.mu.Lock()
	o.cache[key] = cacheEntry{text: text}
	o.mu.Unlock()
}

// Accounting returns the oracle's shared accounting handle.
func (o *Oracle) Accounting() *Accounting { return o.accounting }

// AskStruct is a convenience wrapper decoding the extracted JSON into
// dst, surfacing a KindMalformed Error if decoding ultimately fails.
func AskStruct[T any](ctx context.Context, o *Oracle, systemPrompt, userPrompt string, dst *T) error {
	text, err := o.Ask(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return &Error{Kind: KindMalformed, Err: err}
	}
	return nil
}
