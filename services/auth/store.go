package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"moodtunes-api-go/store"
)

// UserStore persists users keyed by email. Put must fail with ErrUserExists
// when the email is taken.
type UserStore interface {
	Get(ctx context.Context, email string) (*User, error)
	Put(ctx context.Context, user *User) error
	Has(ctx context.Context, email string) (bool, error)
}

// MemoryStore keeps users in a map.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (m *MemoryStore) Get(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryStore) Put(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return ErrUserExists
	}
	m.users[user.Email] = *user
	return nil
}

func (m *MemoryStore) Has(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[email]
	return ok, nil
}

// KVStore stores users as JSON in a bbolt-backed PersistentStore.
type KVStore struct {
	kv *store.PersistentStore
}

func NewKVStore(kv *store.PersistentStore) *KVStore {
	return &KVStore{kv: kv}
}

func userKey(email string) string {
	return "user:" + email
}

func (k *KVStore) Get(_ context.Context, email string) (*User, error) {
	raw, ok := k.kv.Get(userKey(email))
	if !ok {
		return nil, ErrUserNotFound
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", email, err)
	}
	return &u, nil
}

func (k *KVStore) Put(_ context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	inserted, err := k.kv.SetIfAbsent(userKey(user.Email), string(data))
	if err != nil {
		return err
	}
	if !inserted {
		return ErrUserExists
	}
	return nil
}

func (k *KVStore) Has(_ context.Context, email string) (bool, error) {
	return k.kv.Has(userKey(email)), nil
}

// Count returns the number of stored users.
func (k *KVStore) Count() int {
	n, _ := k.kv.Stats()
	return n
}
