// Package favorites keeps the persisted favorites list and applies toggles
// optimistically, rolling back when confirmation fails.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/pagination"
	"moodtunes-api-go/services/catalog"

	log "github.com/sirupsen/logrus"
)

const (
	StorageKey = "favorites"

	DefaultPageSize   = 6
	DefaultUndoWindow = 5 * time.Second
	DefaultSyncDelay  = 300 * time.Millisecond
)

// ErrSyncFailed wraps every confirmation failure returned by Toggle.
var ErrSyncFailed = errors.New("favorites sync failed")

// Storage is the key-value capability used to persist the list.
// *store.PersistentStore satisfies it.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type OpKind int

const (
	Added OpKind = iota
	Removed
)

func (k OpKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "added"
}

// Op describes one applied toggle.
type Op struct {
	Kind OpKind
	Song catalog.Song
}

// Syncer confirms an applied toggle.
type Syncer interface {
	Confirm(ctx context.Context, op Op) error
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context, op Op) error

func (f SyncerFunc) Confirm(ctx context.Context, op Op) error { return f(ctx, op) }

// DelaySyncer waits Delay and succeeds. It stands in for a remote call.
type DelaySyncer struct {
	Delay time.Duration
}

func (d DelaySyncer) Confirm(ctx context.Context, op Op) error {
	if d.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(d.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type NoticeKind int

const (
	Info NoticeKind = iota
	Failure
)

// Notice is a short user-facing message.
type Notice struct {
	Kind    NoticeKind
	Message string
	// Undo is set when the notice offers to undo a removal.
	Undo bool
}

type Options struct {
	PageSize   int
	UndoWindow time.Duration
	Syncer     Syncer
	OnNotice   func(Notice)
}

type undoEntry struct {
	song  catalog.Song
	timer *time.Timer
}

type Store struct {
	storage    Storage
	syncer     Syncer
	undoWindow time.Duration

	mu       sync.Mutex
	songs    []catalog.Song
	cursor   pagination.Cursor
	undo     *undoEntry
	onChange func()
	onNotice func(Notice)
}

func New(storage Storage, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = DefaultUndoWindow
	}
	if opts.Syncer == nil {
		opts.Syncer = DelaySyncer{Delay: DefaultSyncDelay}
	}
	return &Store{
		storage:    storage,
		syncer:     opts.Syncer,
		undoWindow: opts.UndoWindow,
		songs:      []catalog.Song{},
		cursor:     pagination.NewCursor(opts.PageSize),
		onNotice:   opts.OnNotice,
	}
}

// OnChange registers fn to be called after the list or cursor changes.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Store) publish(n Notice) {
	s.mu.Lock()
	fn := s.onNotice
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Load reads the persisted list. Absent or unreadable data yields an empty
// list; duplicate ids keep their first occurrence.
func (s *Store) Load() {
	var songs []catalog.Song
	if raw, ok := s.storage.Get(StorageKey); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &songs); err != nil {
			log.Warnf("%s Ignoring unreadable favorites: %v", logcolors.LogFavorites, err)
			songs = nil
		}
	}

	seen := make(map[int64]struct{}, len(songs))
	clean := make([]catalog.Song, 0, len(songs))
	for _, song := range songs {
		if _, dup := seen[song.ID]; dup {
			continue
		}
		seen[song.ID] = struct{}{}
		clean = append(clean, song)
	}

	s.mu.Lock()
	s.songs = clean
	s.cursor.Reset()
	s.mu.Unlock()

	log.Infof("%s Loaded %d favorites", logcolors.LogFavorites, len(clean))
	s.notify()
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(s.songs)
	if err != nil {
		log.Errorf("%s Failed to encode favorites: %v", logcolors.LogFavorites, err)
		return
	}
	if err := s.storage.Set(StorageKey, string(data)); err != nil {
		log.Errorf("%s Failed to persist favorites: %v", logcolors.LogFavorites, err)
	}
}

func (s *Store) indexLocked(id int64) int {
	for i, song := range s.songs {
		if song.ID == id {
			return i
		}
	}
	return -1
}

// Toggle adds song when absent and removes it when present, persists, then
// confirms through the Syncer. On confirmation failure the list is restored to
// its pre-toggle contents and the returned error wraps ErrSyncFailed.
func (s *Store) Toggle(ctx context.Context, song catalog.Song) error {
	s.mu.Lock()
	snapshot := append([]catalog.Song{}, s.songs...)
	prevCursor := s.cursor

	op := Op{Song: song}
	var entry *undoEntry
	if i := s.indexLocked(song.ID); i < 0 {
		op.Kind = Added
		s.songs = append(s.songs, song)
		s.cursor.Reset()
	} else {
		op.Kind = Removed
		op.Song = s.songs[i]
		s.songs = append(s.songs[:i:i], s.songs[i+1:]...)
		entry = s.bufferLocked(op.Song)
	}
	s.persistLocked()
	s.mu.Unlock()

	log.Infof("%s %s %q", logcolors.LogFavorites, op.Kind, op.Song.Title)
	s.notify()
	if entry != nil {
		s.publish(Notice{Kind: Info, Message: fmt.Sprintf("Removed %s", op.Song.Title), Undo: true})
	}

	err := s.syncer.Confirm(ctx, op)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	s.songs = snapshot
	s.cursor = prevCursor
	if entry != nil && s.undo == entry {
		entry.timer.Stop()
		s.undo = nil
	}
	s.persistLocked()
	s.mu.Unlock()

	log.Warnf("%s Rolled back %s of %q: %v", logcolors.LogFavorites, op.Kind, op.Song.Title, err)
	s.notify()
	s.publish(Notice{Kind: Failure, Message: "Couldn't update favorites. Your change was reverted."})
	return fmt.Errorf("%w: %w", ErrSyncFailed, err)
}

// bufferLocked replaces the undo buffer with song and arms its window.
func (s *Store) bufferLocked(song catalog.Song) *undoEntry {
	if s.undo != nil {
		s.undo.timer.Stop()
	}
	entry := &undoEntry{song: song}
	entry.timer = time.AfterFunc(s.undoWindow, func() { s.expire(entry) })
	s.undo = entry
	return entry
}

func (s *Store) expire(entry *undoEntry) {
	s.mu.Lock()
	expired := s.undo == entry
	if expired {
		s.undo = nil
	}
	s.mu.Unlock()
	if expired {
		log.Debugf("%s Undo window closed for %q", logcolors.LogUndo, entry.song.Title)
		s.notify()
	}
}

// Undo restores the most recently removed song while its window is open.
func (s *Store) Undo() (catalog.Song, bool) {
	s.mu.Lock()
	entry := s.undo
	if entry == nil {
		s.mu.Unlock()
		return catalog.Song{}, false
	}
	entry.timer.Stop()
	s.undo = nil
	if s.indexLocked(entry.song.ID) < 0 {
		s.songs = append(s.songs, entry.song)
	}
	s.persistLocked()
	s.mu.Unlock()

	log.Infof("%s Restored %q", logcolors.LogUndo, entry.song.Title)
	s.notify()
	return entry.song, true
}

// Pending returns the song waiting in the undo buffer.
func (s *Store) Pending() (catalog.Song, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undo == nil {
		return catalog.Song{}, false
	}
	return s.undo.song, true
}

func (s *Store) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.songs)
}

// Songs returns a copy of the list in insertion order.
func (s *Store) Songs() []catalog.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Song{}, s.songs...)
}

// Page returns the favorites on the current page.
func (s *Store) Page() []catalog.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Song{}, pagination.View(s.cursor, s.songs)...)
}

func (s *Store) Cursor() pagination.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Store) NextPage() bool {
	s.mu.Lock()
	moved := s.cursor.Next(len(s.songs))
	s.mu.Unlock()
	if moved {
		s.notify()
	}
	return moved
}

func (s *Store) PrevPage() bool {
	s.mu.Lock()
	moved := s.cursor.Prev()
	s.mu.Unlock()
	if moved {
		s.notify()
	}
	return moved
}

// Close stops the undo timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undo != nil {
		s.undo.timer.Stop()
		s.undo = nil
	}
}
