// Package search runs catalog searches and owns the paged result set.
package search

import (
	"context"
	"strings"
	"sync"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/pagination"
	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/utils"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxQueryLength = 100
	DefaultPageSize       = 12
)

// Searcher is the catalog capability the flow needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]catalog.Song, error)
}

type Options struct {
	MaxQueryLength int
	PageSize       int
}

// State is a point-in-time copy of the flow.
type State struct {
	Query      string
	Busy       bool
	Err        error
	Results    []catalog.Song
	Page       []catalog.Song
	PageNum    int
	TotalPages int
}

// Flow serializes searches so only the latest one may change the result set.
type Flow struct {
	searcher Searcher
	maxLen   int

	mu       sync.Mutex
	seq      uint64
	query    string
	busy     bool
	err      error
	results  []catalog.Song
	cursor   pagination.Cursor
	onChange func()
}

func New(searcher Searcher, opts Options) *Flow {
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = DefaultMaxQueryLength
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Flow{
		searcher: searcher,
		maxLen:   opts.MaxQueryLength,
		results:  []catalog.Song{},
		cursor:   pagination.NewCursor(opts.PageSize),
	}
}

// OnChange registers fn to be called after every state change. fn runs
// without the flow's lock held.
func (f *Flow) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

func (f *Flow) notify() {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Normalize trims raw and truncates it to the maximum query length.
func (f *Flow) Normalize(raw string) string {
	return utils.TruncateRunes(strings.TrimSpace(raw), f.maxLen)
}

// Run searches for raw. Blank input does nothing. A run superseded by a newer
// one leaves the state untouched and returns nil.
func (f *Flow) Run(ctx context.Context, raw string) error {
	q := f.Normalize(raw)
	if q == "" {
		return nil
	}

	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.query = q
	f.busy = true
	f.err = nil
	f.results = []catalog.Song{}
	f.mu.Unlock()
	f.notify()

	log.Infof("%s Searching %q", logcolors.LogSearch, q)
	songs, err := f.searcher.Search(ctx, q)

	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		log.Debugf("%s Dropping stale response for %q", logcolors.LogSearch, q)
		return nil
	}
	f.busy = false
	if err != nil {
		f.err = err
		f.mu.Unlock()
		log.Warnf("%s Search %q failed: %v", logcolors.LogSearch, q, err)
		f.notify()
		return err
	}
	if songs == nil {
		songs = []catalog.Song{}
	}
	f.results = songs
	f.cursor.Reset()
	f.mu.Unlock()

	f.notify()
	return nil
}

// Retry re-runs the last query.
func (f *Flow) Retry(ctx context.Context) error {
	f.mu.Lock()
	q := f.query
	f.mu.Unlock()
	return f.Run(ctx, q)
}

// Replace installs songs produced elsewhere, superseding any in-flight run.
func (f *Flow) Replace(songs []catalog.Song) {
	f.mu.Lock()
	f.seq++
	f.busy = false
	f.err = nil
	f.results = append([]catalog.Song{}, songs...)
	f.cursor.Reset()
	f.mu.Unlock()
	f.notify()
}

func (f *Flow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Err returns the error of the latest completed run, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) Query() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// Results returns a copy of the full result set.
func (f *Flow) Results() []catalog.Song {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.Song{}, f.results...)
}

// Page returns the songs on the current page.
func (f *Flow) Page() []catalog.Song {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.Song{}, pagination.View(f.cursor, f.results)...)
}

func (f *Flow) NextPage() bool {
	f.mu.Lock()
	moved := f.cursor.Next(len(f.results))
	f.mu.Unlock()
	if moved {
		f.notify()
	}
	return moved
}

func (f *Flow) PrevPage() bool {
	f.mu.Lock()
	moved := f.cursor.Prev()
	f.mu.Unlock()
	if moved {
		f.notify()
	}
	return moved
}

func (f *Flow) Cursor() pagination.Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Snapshot returns a consistent copy of the whole state.
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Query:      f.query,
		Busy:       f.busy,
		Err:        f.err,
		Results:    append([]catalog.Song{}, f.results...),
		Page:       append([]catalog.Song{}, pagination.View(f.cursor, f.results)...),
		PageNum:    f.cursor.Page,
		TotalPages: pagination.TotalPages(len(f.results), f.cursor.Size),
	}
}
