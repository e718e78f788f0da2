package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/store"
)

type memStorage struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string]string{}}
}

func (m *memStorage) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memStorage) saved(t *testing.T) []catalog.Song {
	t.Helper()
	raw, ok := m.Get(StorageKey)
	if !ok {
		t.Fatal("Expected favorites to be persisted")
	}
	var songs []catalog.Song
	if err := json.Unmarshal([]byte(raw), &songs); err != nil {
		t.Fatalf("Persisted favorites are not valid JSON: %v", err)
	}
	return songs
}

var instant = SyncerFunc(func(context.Context, Op) error { return nil })

func song(id int64) catalog.Song {
	return catalog.Song{ID: id, Title: "Song", Author: "Artist", Style: "Pop"}
}

func ids(songs []catalog.Song) []int64 {
	out := make([]int64, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func TestToggleAddsAndRemoves(t *testing.T) {
	st := newMemStorage()
	s := New(st, Options{Syncer: instant})
	defer s.Close()
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if err := s.Toggle(ctx, song(id)); err != nil {
			t.Fatalf("Toggle(%d) failed: %v", id, err)
		}
	}
	if got := ids(s.Songs()); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}

	if err := s.Toggle(ctx, song(2)); err != nil {
		t.Fatalf("Toggle remove failed: %v", err)
	}
	if got := ids(s.Songs()); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Errorf("Expected [1 3], got %v", got)
	}
	if got := ids(st.saved(t)); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Errorf("Expected persisted [1 3], got %v", got)
	}
	if s.Contains(2) {
		t.Error("Expected song 2 to be gone")
	}
}

func TestToggleTwiceNeverDuplicates(t *testing.T) {
	s := New(newMemStorage(), Options{Syncer: instant})
	defer s.Close()
	ctx := context.Background()

	s.Toggle(ctx, song(7))
	s.Toggle(ctx, song(7))
	s.Toggle(ctx, song(7))
	if got := ids(s.Songs()); !reflect.DeepEqual(got, []int64{7}) {
		t.Errorf("Expected a single entry, got %v", got)
	}
}

func TestAddResetsCursor(t *testing.T) {
	s := New(newMemStorage(), Options{Syncer: instant, PageSize: 2})
	defer s.Close()
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		s.Toggle(ctx, song(id))
	}
	s.NextPage()
	s.NextPage()
	if s.Cursor().Page != 3 {
		t.Fatalf("Expected page 3, got %d", s.Cursor().Page)
	}
	if got := ids(s.Page()); !reflect.DeepEqual(got, []int64{5}) {
		t.Errorf("Expected last page [5], got %v", got)
	}

	s.Toggle(ctx, song(6))
	if s.Cursor().Page != 1 {
		t.Errorf("Expected cursor reset to 1, got %d", s.Cursor().Page)
	}
}

func TestFailedSyncRollsBackExactly(t *testing.T) {
	tests := []struct {
		name   string
		toggle int64
	}{
		{"failed add", 9},
		{"failed remove", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStorage()
			boom := errors.New("offline")
			fail := false
			var notices []Notice
			s := New(st, Options{
				Syncer: SyncerFunc(func(context.Context, Op) error {
					if fail {
						return boom
					}
					return nil
				}),
				OnNotice: func(n Notice) { notices = append(notices, n) },
			})
			defer s.Close()
			ctx := context.Background()

			for _, id := range []int64{1, 2, 3} {
				s.Toggle(ctx, song(id))
			}
			before := s.Songs()

			fail = true
			err := s.Toggle(ctx, song(tt.toggle))
			if !errors.Is(err, ErrSyncFailed) || !errors.Is(err, boom) {
				t.Fatalf("Expected ErrSyncFailed wrapping the cause, got %v", err)
			}
			if got := s.Songs(); !reflect.DeepEqual(got, before) {
				t.Errorf("Expected exact rollback to %v, got %v", ids(before), ids(got))
			}
			if got := st.saved(t); !reflect.DeepEqual(got, before) {
				t.Errorf("Expected persisted rollback to %v, got %v", ids(before), ids(got))
			}
			if _, ok := s.Pending(); ok {
				t.Error("Expected the undo entry of the failed toggle to be dropped")
			}
			last := notices[len(notices)-1]
			if last.Kind != Failure {
				t.Errorf("Expected a failure notice, got %+v", last)
			}
		})
	}
}

func TestUndoRestoresRemovedSong(t *testing.T) {
	s := New(newMemStorage(), Options{Syncer: instant})
	defer s.Close()
	ctx := context.Background()
	s.Toggle(ctx, song(1))
	s.Toggle(ctx, song(2))
	s.Toggle(ctx, song(1))

	restored, ok := s.Undo()
	if !ok || restored.ID != 1 {
		t.Fatalf("Expected song 1 to be restored, got %+v ok=%v", restored, ok)
	}
	if !s.Contains(1) || s.Len() != 2 {
		t.Errorf("Expected both songs present, got %v", ids(s.Songs()))
	}
	if _, ok := s.Undo(); ok {
		t.Error("Expected second undo to be a no-op")
	}
}

func TestUndoExpires(t *testing.T) {
	s := New(newMemStorage(), Options{Syncer: instant, UndoWindow: 10 * time.Millisecond})
	defer s.Close()
	ctx := context.Background()
	s.Toggle(ctx, song(1))
	s.Toggle(ctx, song(1))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.Pending(); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the undo window to close")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, ok := s.Undo(); ok {
		t.Error("Expected undo after expiry to be a no-op")
	}
	if s.Contains(1) {
		t.Error("Expected song to stay removed")
	}
}

func TestUndoSkipsSongAlreadyPresent(t *testing.T) {
	s := New(newMemStorage(), Options{Syncer: instant})
	defer s.Close()
	ctx := context.Background()
	s.Toggle(ctx, song(1))
	s.Toggle(ctx, song(1))
	s.Toggle(ctx, song(1))

	if _, ok := s.Undo(); !ok {
		t.Fatal("Expected the buffered song to be consumed")
	}
	if s.Len() != 1 {
		t.Errorf("Expected no duplicate after undo, got %v", ids(s.Songs()))
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		stored   *string
		expected []int64
	}{
		{"absent", nil, []int64{}},
		{"corrupt", ptr("{not json"), []int64{}},
		{"wrong shape", ptr(`{"id":1}`), []int64{}},
		{"valid", ptr(`[{"id":1,"title":"A"},{"id":2,"title":"B"}]`), []int64{1, 2}},
		{"duplicates", ptr(`[{"id":1},{"id":2},{"id":1}]`), []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStorage()
			if tt.stored != nil {
				st.data[StorageKey] = *tt.stored
			}
			s := New(st, Options{Syncer: instant})
			s.Load()
			if got := ids(s.Songs()); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestDelaySyncerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DelaySyncer{Delay: time.Hour}.Confirm(ctx, Op{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := (DelaySyncer{Delay: time.Millisecond}).Confirm(context.Background(), Op{}); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
}

func TestPersistsThroughBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	ps, err := store.NewPersistentStore(path, "", false)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	s := New(ps, Options{Syncer: instant})
	s.Toggle(context.Background(), song(42))
	s.Close()
	ps.Close()

	ps, err = store.NewPersistentStore(path, "", false)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer ps.Close()

	reloaded := New(ps, Options{Syncer: instant})
	reloaded.Load()
	if got := ids(reloaded.Songs()); !reflect.DeepEqual(got, []int64{42}) {
		t.Errorf("Expected [42] after reload, got %v", got)
	}
}
