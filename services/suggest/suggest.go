// Package suggest drives the debounced autocomplete dropdown.
package suggest

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/utils"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultDelay = 300 * time.Millisecond
	DefaultCap   = 5
)

// Suggester is the catalog capability the engine needs.
type Suggester interface {
	Suggest(ctx context.Context, query string) ([]catalog.Suggestion, error)
}

type Status int

const (
	Idle Status = iota
	Pending
	Showing
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Showing:
		return "showing"
	default:
		return "idle"
	}
}

// State is a copy of the engine state handed to observers.
type State struct {
	Status    Status
	Text      string
	Items     []catalog.Suggestion
	Highlight int // -1 when nothing is highlighted
}

// Visible reports whether the dropdown should be drawn.
func (s State) Visible() bool {
	return s.Status == Showing && len(s.Items) > 0
}

type Options struct {
	Delay time.Duration
	Cap   int
}

// Engine debounces keystrokes into suggestion lookups. Only the lookup for
// the latest keystroke may update the dropdown.
type Engine struct {
	suggester Suggester
	delay     time.Duration
	cap       int

	mu        sync.Mutex
	status    Status
	text      string
	items     []catalog.Suggestion
	highlight int
	committed string
	seq       uint64
	timer     *time.Timer
	cancel    context.CancelFunc
	stopped   bool
	onChange  func(State)
}

func New(s Suggester, opts Options) *Engine {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}
	return &Engine{suggester: s, delay: opts.Delay, cap: opts.Cap, highlight: -1}
}

// Dedupe keeps the first suggestion per case-insensitive title and author,
// preserving order, up to limit entries. A limit below one yields none.
func Dedupe(raw []catalog.Suggestion, limit int) []catalog.Suggestion {
	if limit <= 0 {
		return []catalog.Suggestion{}
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]catalog.Suggestion, 0, limit)
	for _, s := range raw {
		if len(out) == limit {
			break
		}
		key := utils.FoldKey(s.Title, s.Author)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// OnChange registers the observer. It is called without the engine lock held.
func (e *Engine) OnChange(fn func(State)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) snapshotLocked() State {
	return State{
		Status:    e.status,
		Text:      e.text,
		Items:     append([]catalog.Suggestion(nil), e.items...),
		Highlight: e.highlight,
	}
}

// unlockAndNotify releases the lock and publishes the state taken under it.
func (e *Engine) unlockAndNotify() {
	st := e.snapshotLocked()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// resetLocked invalidates pending work and closes the dropdown.
func (e *Engine) resetLocked() {
	e.seq++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.status = Idle
	e.items = nil
	e.highlight = -1
}

// Input handles a change of the input text.
func (e *Engine) Input(text string) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.text = text

	if e.committed != "" {
		echo := text == e.committed
		e.committed = ""
		if echo {
			e.mu.Unlock()
			return
		}
	}

	q := strings.TrimSpace(text)
	if utf8.RuneCountInString(q) <= 1 {
		e.resetLocked()
		e.unlockAndNotify()
		return
	}

	e.resetLocked()
	e.status = Pending
	seq := e.seq
	e.timer = time.AfterFunc(e.delay, func() { e.fire(seq, q) })
	e.unlockAndNotify()
}

func (e *Engine) fire(seq uint64, q string) {
	e.mu.Lock()
	if seq != e.seq || e.stopped {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	raw, err := e.suggester.Suggest(ctx, q)
	cancel()

	e.mu.Lock()
	if seq != e.seq || e.stopped {
		e.mu.Unlock()
		log.Debugf("%s Dropping stale suggestions for %q", logcolors.LogSuggest, q)
		return
	}
	e.cancel = nil
	e.highlight = -1
	if err != nil {
		log.Warnf("%s Suggestions for %q failed: %v", logcolors.LogSuggest, q, err)
		e.items = nil
		e.status = Idle
	} else {
		e.items = Dedupe(raw, e.cap)
		e.status = Idle
		if len(e.items) > 0 {
			e.status = Showing
		}
	}
	e.unlockAndNotify()
}

// MoveDown highlights the next item, wrapping to the first.
func (e *Engine) MoveDown() bool {
	e.mu.Lock()
	n := len(e.items)
	if e.status != Showing || n == 0 {
		e.mu.Unlock()
		return false
	}
	if e.highlight < 0 {
		e.highlight = 0
	} else {
		e.highlight = (e.highlight + 1) % n
	}
	e.unlockAndNotify()
	return true
}

// MoveUp highlights the previous item, wrapping to the last. With nothing
// highlighted it goes to the last item.
func (e *Engine) MoveUp() bool {
	e.mu.Lock()
	n := len(e.items)
	if e.status != Showing || n == 0 {
		e.mu.Unlock()
		return false
	}
	if e.highlight < 0 {
		e.highlight = n - 1
	} else {
		e.highlight = (e.highlight - 1 + n) % n
	}
	e.unlockAndNotify()
	return true
}

// Enter closes the dropdown and returns the query to search. With an item
// highlighted the query is its title and author and becomes the input text.
func (e *Engine) Enter() string {
	e.mu.Lock()
	if e.status == Showing && e.highlight >= 0 && e.highlight < len(e.items) {
		item := e.items[e.highlight]
		e.commitLocked(item)
		q := e.text
		e.unlockAndNotify()
		return q
	}
	q := e.text
	e.resetLocked()
	e.unlockAndNotify()
	return q
}

// Select commits item i directly (pointer selection).
func (e *Engine) Select(i int) (string, bool) {
	e.mu.Lock()
	if e.status != Showing || i < 0 || i >= len(e.items) {
		e.mu.Unlock()
		return "", false
	}
	e.commitLocked(e.items[i])
	q := e.text
	e.unlockAndNotify()
	return q, true
}

func (e *Engine) commitLocked(item catalog.Suggestion) {
	q := item.Title + " " + item.Author
	e.resetLocked()
	e.text = q
	e.committed = q
	log.Debugf("%s Committed %q", logcolors.LogSuggest, q)
}

// Escape closes the dropdown and leaves the text alone.
func (e *Engine) Escape() {
	e.mu.Lock()
	e.resetLocked()
	e.unlockAndNotify()
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Stop cancels pending work; later input is ignored.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.resetLocked()
	e.stopped = true
	e.mu.Unlock()
}
