// Package session wires the client components together: search, suggestions,
// favorites, theme and mood, and the agent bridge.
package session

import (
	"context"
	"sync"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/bridge"
	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/services/favorites"
	"moodtunes-api-go/services/search"
	"moodtunes-api-go/services/suggest"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	ThemeKey   = "theme"
	ThemeDark  = "dark"
	ThemeLight = "light"

	DefaultLookupConcurrency = 4
)

// Catalog is what the session needs from the catalog client.
type Catalog interface {
	Search(ctx context.Context, query string) ([]catalog.Song, error)
	Suggest(ctx context.Context, query string) ([]catalog.Suggestion, error)
	Lookup(ctx context.Context, title, artist string) (*catalog.Song, error)
}

// Storage persists the theme and favorites.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type Options struct {
	Catalog  Catalog
	Storage  Storage
	Registry *bridge.Registry

	Search    search.Options
	Suggest   suggest.Options
	Favorites favorites.Options

	LookupConcurrency int
}

type Session struct {
	catalog   Catalog
	storage   Storage
	registry  *bridge.Registry
	lookupMax int

	search    *search.Flow
	suggest   *suggest.Engine
	favorites *favorites.Store

	mu         sync.Mutex
	dark       bool
	mood       bridge.Mood
	notice     *favorites.Notice
	unregister func()
	onChange   func()
}

func New(opts Options) *Session {
	if opts.LookupConcurrency <= 0 {
		opts.LookupConcurrency = DefaultLookupConcurrency
	}
	s := &Session{
		catalog:   opts.Catalog,
		storage:   opts.Storage,
		registry:  opts.Registry,
		lookupMax: opts.LookupConcurrency,
		mood:      bridge.MoodDefault,
	}

	userNotice := opts.Favorites.OnNotice
	opts.Favorites.OnNotice = func(n favorites.Notice) {
		s.mu.Lock()
		s.notice = &n
		s.mu.Unlock()
		if userNotice != nil {
			userNotice(n)
		}
		s.notify()
	}

	s.search = search.New(opts.Catalog, opts.Search)
	s.suggest = suggest.New(opts.Catalog, opts.Suggest)
	s.favorites = favorites.New(opts.Storage, opts.Favorites)

	s.search.OnChange(s.notify)
	s.favorites.OnChange(s.notify)
	s.suggest.OnChange(func(suggest.State) { s.notify() })
	return s
}

// Start loads persisted state and registers with the bridge.
func (s *Session) Start() {
	theme, _ := s.storage.Get(ThemeKey)
	s.mu.Lock()
	s.dark = theme == ThemeDark
	s.mu.Unlock()

	s.favorites.Load()

	if s.registry != nil {
		unregister := s.registry.Register(s)
		s.mu.Lock()
		s.unregister = unregister
		s.mu.Unlock()
	}
	log.Infof("%s Session started (theme: %s)", logcolors.LogSession, s.Theme())
}

// Close unregisters from the bridge and stops timers.
func (s *Session) Close() {
	s.mu.Lock()
	unregister := s.unregister
	s.unregister = nil
	s.mu.Unlock()

	if unregister != nil {
		unregister()
	}
	s.suggest.Stop()
	s.favorites.Close()
	log.Infof("%s Session closed", logcolors.LogSession)
}

// OnChange registers fn to be called after any component changes.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) Search() *search.Flow { return s.search }

func (s *Session) Suggestions() *suggest.Engine { return s.suggest }

func (s *Session) Favorites() *favorites.Store { return s.favorites }

// Type feeds the search box text to the suggestion engine.
func (s *Session) Type(text string) {
	s.suggest.Input(text)
}

// Commit handles Enter in the search box: it closes the dropdown and returns
// the highlighted suggestion's query or the typed text.
func (s *Session) Commit() string {
	return s.suggest.Enter()
}

// Submit commits and runs the search. It returns the query used.
func (s *Session) Submit(ctx context.Context) (string, error) {
	q := s.Commit()
	return q, s.search.Run(ctx, q)
}

// Pick commits suggestion i and searches it.
func (s *Session) Pick(ctx context.Context, i int) (string, error) {
	q, ok := s.suggest.Select(i)
	if !ok {
		return "", nil
	}
	return q, s.search.Run(ctx, q)
}

func (s *Session) Dark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark
}

func (s *Session) Theme() string {
	if s.Dark() {
		return ThemeDark
	}
	return ThemeLight
}

// ToggleTheme flips and persists the theme. It returns the new dark flag.
func (s *Session) ToggleTheme() bool {
	s.mu.Lock()
	s.dark = !s.dark
	dark := s.dark
	s.mu.Unlock()

	theme := ThemeLight
	if dark {
		theme = ThemeDark
	}
	if err := s.storage.Set(ThemeKey, theme); err != nil {
		log.Errorf("%s Failed to persist theme: %v", logcolors.LogSession, err)
	}
	s.notify()
	return dark
}

func (s *Session) Mood() bridge.Mood {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mood
}

// Background returns the gradient for the current mood and theme.
func (s *Session) Background() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bridge.Background(s.mood, s.dark)
}

// TakeNotice returns and clears the latest favorites notice.
func (s *Session) TakeNotice() (favorites.Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return favorites.Notice{}, false
	}
	n := *s.notice
	s.notice = nil
	return n, true
}

// OnMood implements bridge.Observer.
func (s *Session) OnMood(m bridge.Mood) {
	s.mu.Lock()
	s.mood = m
	s.mu.Unlock()
	s.notify()
}

// OnMusic implements bridge.Observer. Free text runs a normal search; a list of
// pairs is resolved one lookup per pair and replaces the results.
func (s *Session) OnMusic(ctx context.Context, req bridge.MusicRequest) {
	if req.IsQuery {
		if err := s.search.Run(ctx, req.Query); err != nil {
			log.Warnf("%s Agent search failed: %v", logcolors.LogSession, err)
		}
		return
	}
	s.search.Replace(s.LookupPairs(ctx, req.Pairs))
}

// LookupPairs resolves each pair to its best catalog match. Misses and failed
// lookups are dropped; hits keep the order of pairs.
func (s *Session) LookupPairs(ctx context.Context, pairs []bridge.Pair) []catalog.Song {
	hits := make([]*catalog.Song, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupMax)
	for i, p := range pairs {
		g.Go(func() error {
			song, err := s.catalog.Lookup(gctx, p.Title, p.Artist)
			if err != nil {
				log.Warnf("%s Lookup %q by %q failed: %v", logcolors.LogSession, p.Title, p.Artist, err)
				return nil
			}
			hits[i] = song
			return nil
		})
	}
	g.Wait()

	out := make([]catalog.Song, 0, len(pairs))
	for _, song := range hits {
		if song != nil {
			out = append(out, *song)
		}
	}
	log.Infof("%s Resolved %d of %d agent songs", logcolors.LogSession, len(out), len(pairs))
	return out
}
