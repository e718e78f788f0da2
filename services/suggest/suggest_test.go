package suggest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moodtunes-api-go/services/catalog"
)

type fakeSuggester struct {
	mu      sync.Mutex
	queries []string
	items   []catalog.Suggestion
	err     error
	gates   map[string]chan struct{}
}

func (f *fakeSuggester) Suggest(ctx context.Context, q string) ([]catalog.Suggestion, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.gates[q]
	items, err := f.items, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Suggestion, len(items))
	for i, s := range items {
		s.Title = q + ":" + s.Title
		out[i] = s
	}
	return out, nil
}

func (f *fakeSuggester) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func items(n int) []catalog.Suggestion {
	out := make([]catalog.Suggestion, n)
	for i := range out {
		out[i] = catalog.Suggestion{ID: int64(i + 1), Title: string(rune('a' + i)), Author: "Artist"}
	}
	return out
}

func TestDedupe(t *testing.T) {
	raw := []catalog.Suggestion{
		{ID: 1, Title: "Yesterday", Author: "The Beatles"},
		{ID: 2, Title: "YESTERDAY", Author: "the beatles"},
		{ID: 3, Title: "Yesterday", Author: "Boyz II Men"},
		{ID: 4, Title: "Help!", Author: "The Beatles"},
		{ID: 5, Title: "Let It Be", Author: "The Beatles"},
		{ID: 6, Title: "Hey Jude", Author: "The Beatles"},
		{ID: 7, Title: "Something", Author: "The Beatles"},
	}

	got := Dedupe(raw, 5)
	wantIDs := []int64{1, 3, 4, 5, 6}
	if len(got) != len(wantIDs) {
		t.Fatalf("Expected %d suggestions, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("Position %d: expected id %d, got %d", i, id, got[i].ID)
		}
	}
}

func TestDedupeNonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		got := Dedupe(items(3), limit)
		if got == nil || len(got) != 0 {
			t.Errorf("Dedupe(limit=%d): expected an empty slice, got %v", limit, got)
		}
	}
}

func TestShortInputStaysIdle(t *testing.T) {
	fs := &fakeSuggester{items: items(3)}
	e := New(fs, Options{Delay: 5 * time.Millisecond})
	defer e.Stop()

	for _, text := range []string{"", "a", "  b  ", "é"} {
		e.Input(text)
		if st := e.State(); st.Status != Idle {
			t.Errorf("Input(%q): expected idle, got %s", text, st.Status)
		}
	}
	time.Sleep(30 * time.Millisecond)
	if calls := fs.calls(); len(calls) != 0 {
		t.Errorf("Expected no lookups, got %v", calls)
	}
}

func TestDebounceIssuesOneLookup(t *testing.T) {
	fs := &fakeSuggester{items: items(3)}
	e := New(fs, Options{Delay: 20 * time.Millisecond})
	defer e.Stop()

	for _, text := range []string{"ye", "yel", "yell", "yello"} {
		e.Input(text)
		if e.State().Status != Pending {
			t.Fatalf("Expected pending after %q", text)
		}
	}

	waitFor(t, "suggestions", func() bool { return e.State().Status == Showing })
	calls := fs.calls()
	if len(calls) != 1 || calls[0] != "yello" {
		t.Errorf("Expected a single lookup for the last text, got %v", calls)
	}
	if st := e.State(); len(st.Items) != 3 || st.Highlight != -1 {
		t.Errorf("Expected 3 items without highlight, got %d items highlight %d", len(st.Items), st.Highlight)
	}
}

func TestEmptyResultGoesIdle(t *testing.T) {
	fs := &fakeSuggester{}
	e := New(fs, Options{Delay: time.Millisecond})
	defer e.Stop()

	e.Input("zzzz")
	waitFor(t, "lookup", func() bool { return len(fs.calls()) == 1 })
	waitFor(t, "idle", func() bool { return e.State().Status == Idle })
}

func TestFailureIsSwallowed(t *testing.T) {
	fs := &fakeSuggester{err: errors.New("offline")}
	e := New(fs, Options{Delay: time.Millisecond})
	defer e.Stop()

	e.Input("beatles")
	waitFor(t, "lookup", func() bool { return len(fs.calls()) == 1 })
	waitFor(t, "idle", func() bool { return e.State().Status == Idle })
	if st := e.State(); st.Visible() || st.Text != "beatles" {
		t.Errorf("Expected hidden dropdown and untouched text, got %+v", st)
	}
}

func TestStaleLookupIsDropped(t *testing.T) {
	gate := make(chan struct{})
	fs := &fakeSuggester{items: items(2), gates: map[string]chan struct{}{"old": gate}}
	e := New(fs, Options{Delay: time.Millisecond})
	defer e.Stop()

	e.Input("old")
	waitFor(t, "first lookup", func() bool { return len(fs.calls()) == 1 })

	e.Input("new")
	waitFor(t, "second result", func() bool { return e.State().Status == Showing })
	close(gate)
	time.Sleep(20 * time.Millisecond)

	st := e.State()
	if len(st.Items) != 2 || st.Items[0].Title != "new:a" {
		t.Errorf("Expected results for the latest text, got %+v", st.Items)
	}
}

func showing(t *testing.T, n int) *Engine {
	t.Helper()
	fs := &fakeSuggester{items: items(n)}
	e := New(fs, Options{Delay: time.Millisecond})
	t.Cleanup(e.Stop)
	e.Input("query")
	waitFor(t, "suggestions", func() bool { return e.State().Status == Showing })
	return e
}

func TestCircularNavigation(t *testing.T) {
	e := showing(t, 3)

	steps := []struct {
		move     func() bool
		expected int
	}{
		{e.MoveDown, 0},
		{e.MoveDown, 1},
		{e.MoveDown, 2},
		{e.MoveDown, 0},
		{e.MoveUp, 2},
		{e.MoveUp, 1},
	}
	for i, s := range steps {
		if !s.move() {
			t.Fatalf("Step %d: expected move to succeed", i)
		}
		if got := e.State().Highlight; got != s.expected {
			t.Errorf("Step %d: expected highlight %d, got %d", i, s.expected, got)
		}
	}
}

func TestMoveUpFromNoneGoesToLast(t *testing.T) {
	e := showing(t, 4)
	e.MoveUp()
	if got := e.State().Highlight; got != 3 {
		t.Errorf("Expected highlight 3, got %d", got)
	}
}

func TestNavigationWhileHidden(t *testing.T) {
	e := New(&fakeSuggester{}, Options{})
	if e.MoveDown() || e.MoveUp() {
		t.Error("Expected navigation to be a no-op while hidden")
	}
}

func TestEnterWithHighlightCommitsSuggestion(t *testing.T) {
	e := showing(t, 3)
	e.MoveDown()
	e.MoveDown()

	q := e.Enter()
	if q != "query:b Artist" {
		t.Errorf("Expected 'query:b Artist', got %q", q)
	}
	st := e.State()
	if st.Status != Idle || st.Text != q {
		t.Errorf("Expected closed dropdown with committed text, got %+v", st)
	}

	// The echoed input must not reopen the dropdown
	e.Input(q)
	if e.State().Status != Idle {
		t.Error("Expected echo of committed text to be ignored")
	}
	// A real edit afterwards works again
	e.Input(q + "x")
	if e.State().Status != Pending {
		t.Error("Expected a later edit to arm the debounce")
	}
}

func TestEnterWithoutHighlightUsesTypedText(t *testing.T) {
	e := showing(t, 3)
	if q := e.Enter(); q != "query" {
		t.Errorf("Expected typed text, got %q", q)
	}
	if e.State().Visible() {
		t.Error("Expected dropdown to close")
	}
}

func TestSelectAndEscape(t *testing.T) {
	e := showing(t, 3)
	if _, ok := e.Select(7); ok {
		t.Error("Expected out of range select to fail")
	}
	q, ok := e.Select(2)
	if !ok || q != "query:c Artist" {
		t.Errorf("Expected 'query:c Artist', got %q ok=%v", q, ok)
	}

	e = showing(t, 2)
	e.MoveDown()
	e.Escape()
	st := e.State()
	if st.Visible() || st.Highlight != -1 || st.Text != "query" {
		t.Errorf("Expected escape to close and keep text, got %+v", st)
	}
}

func TestOnChangeReceivesStates(t *testing.T) {
	fs := &fakeSuggester{items: items(1)}
	e := New(fs, Options{Delay: time.Millisecond})
	defer e.Stop()

	var mu sync.Mutex
	var seen []Status
	e.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, st.Status)
		mu.Unlock()
	})

	e.Input("abc")
	waitFor(t, "showing", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == Showing
	})

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != Pending {
		t.Errorf("Expected first notification to be pending, got %s", seen[0])
	}
}

func TestStopIgnoresLaterInput(t *testing.T) {
	fs := &fakeSuggester{items: items(1)}
	e := New(fs, Options{Delay: time.Millisecond})
	e.Stop()
	e.Input("abc")
	time.Sleep(20 * time.Millisecond)
	if len(fs.calls()) != 0 {
		t.Error("Expected no lookups after Stop")
	}
}
