package oracle

import (
	"context"
	"errors"
	"testing"
)

type fakeTransport struct {
	model     string
	responses []string
	calls     int
}

func (f *fakeTransport) ModelID() string { return f.model }

func (f *fakeTransport) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, int, int, error) {
	if f.calls >= len(f.responses) {
		return "", 0, 0, errors.New("fake transport exhausted")
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, 10, 5, nil
}

func TestAskCachesIdenticalPrompts(t *testing.T) {
	ft := &fakeTransport{model: "fake-1", responses: []string{`{"ok": true}`, `{"ok": false}`}}
	acc := NewAccounting(0, 0)
	o := New(ft, acc)

	first, err := o.Ask(context.Background(), "sys", "user", true)
	if err != nil {
		t.Fatalf("first ask: %v", err)
	}
	second, err := o.Ask(context.Background(), "sys", "user", true)
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached response, got %q then %q", first, second)
	}
	if ft.calls != 1 {
		t.Fatalf("expected exactly 1 transport call, got %d", ft.calls)
	}
	if acc.Snapshot().TotalTokens != 15 {
		t.Fatalf("expected accounting to record only the uncached call, got %+v", acc.Snapshot())
	}
}

func TestAskRetriesOnMalformedJSON(t *testing.T) {
	ft := &fakeTransport{model: "fake-1", responses: []string{"not json at all", `{"ok": true}`}}
	o := New(ft, NewAccounting(0, 0))

	text, err := o.Ask(context.Background(), "sys", "user", true)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if text != `{"ok": true}` {
		t.Fatalf("expected recovered JSON, got %q", text)
	}
	if ft.calls != 2 {
		t.Fatalf("expected a retry after malformed output, got %d calls", ft.calls)
	}
}

func TestAskExhaustsRetriesAndReturnsMalformedError(t *testing.T) {
	ft := &fakeTransport{model: "fake-1", responses: []string{"nope", "still nope", "nope again", "nope once more"}}
	o := New(ft, NewAccounting(0, 0), WithMaxRetries(3))

	_, err := o.Ask(context.Background(), "sys", "user", true)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var oerr *Error
	if !errors.As(err, &oerr) || oerr.Kind != KindMalformed {
		t.Fatalf("expected KindMalformed, got %v", err)
	}
}

func TestAskStructDecodesIntoTarget(t *testing.T) {
	ft := &fakeTransport{model: "fake-1", responses: []string{`{"operation_sequence": ["createPet", "getPet"], "usage_guide": "create then fetch"}`}}
	o := New(ft, NewAccounting(0, 0))

	var result SelectOperationsResult
	if err := AskStruct(context.Background(), o, "sys", "user", &result); err != nil {
		t.Fatalf("ask struct: %v", err)
	}
	if len(result.OperationSequence) != 2 || result.OperationSequence[1] != "getPet" {
		t.Fatalf("unexpected decode: %+v", result)
	}
}
