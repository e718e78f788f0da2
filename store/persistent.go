package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// DefaultBucket is used when NewPersistentStore is given an empty bucket name.
const DefaultBucket = "kv"

var ErrBucketNotFound = errors.New("bucket not found")

// PersistentStore is a string key-value store on BoltDB fronted by an
// in-memory copy of every entry.
type PersistentStore struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	bucket             []byte
	compressionEnabled bool
}

// Entry is the on-disk representation of a value (possibly compressed).
type Entry struct {
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updatedAt"`
}

// NewPersistentStore opens (or creates) the database at dbPath and preloads
// the bucket into memory.
func NewPersistentStore(dbPath, bucket string, compressionEnabled bool) (*PersistentStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogStoreInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogStoreInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}

	ps := &PersistentStore{
		db:                 db,
		dbPath:             dbPath,
		bucket:             []byte(bucket),
		compressionEnabled: compressionEnabled,
	}

	if err := ps.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload bucket %q to memory: %v", logcolors.LogStore, bucket, err)
	}

	log.Infof("%s Persistent store initialized at %s (bucket: %s, compression: %v)", logcolors.LogStore, dbPath, bucket, compressionEnabled)
	return ps, nil
}

// loadToMemory loads all entries from disk to memory
func (ps *PersistentStore) loadToMemory() error {
	count := 0
	err := ps.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(ps.bucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping undecodable entry %s: %v", logcolors.LogStore, string(k), err)
				return nil
			}
			ps.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Debugf("%s Loaded %d entries from disk to memory", logcolors.LogStore, count)
	return nil
}

// decode returns the plain value of an entry.
func (ps *PersistentStore) decode(key string, entry Entry) (string, bool) {
	if !ps.compressionEnabled {
		return entry.Value, true
	}
	plain, err := utils.DecompressString(entry.Value)
	if err != nil {
		log.Errorf("%s Error decompressing value for key %s: %v", logcolors.LogStore, key, err)
		return "", false
	}
	return plain, true
}

// Get retrieves a value (memory first, then disk).
func (ps *PersistentStore) Get(key string) (string, bool) {
	if entry, ok := ps.memCache.Load(key); ok {
		return ps.decode(key, entry.(Entry))
	}

	var entry Entry
	err := ps.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(ps.bucket)
		if b == nil {
			return ErrBucketNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("key not found")
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return "", false
	}

	ps.memCache.Store(key, entry)
	return ps.decode(key, entry)
}

// Has reports whether key is present.
func (ps *PersistentStore) Has(key string) bool {
	_, ok := ps.Get(key)
	return ok
}

// Set stores a value in memory and on disk.
func (ps *PersistentStore) Set(key, value string) error {
	stored := value
	if ps.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			log.Errorf("%s Error compressing value for key %s: %v", logcolors.LogStore, key, err)
			return err
		}
		stored = compressed
	}

	entry := Entry{Value: stored, UpdatedAt: time.Now().Unix()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = ps.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ps.bucket)
		if b == nil {
			return ErrBucketNotFound
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return err
	}

	ps.memCache.Store(key, entry)
	return nil
}

// SetIfAbsent stores value only when key is not yet present. It returns false
// when the key already existed. The check and the write share one transaction.
func (ps *PersistentStore) SetIfAbsent(key, value string) (bool, error) {
	stored := value
	if ps.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			return false, err
		}
		stored = compressed
	}
	entry := Entry{Value: stored, UpdatedAt: time.Now().Unix()}
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}

	inserted := false
	err = ps.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ps.bucket)
		if b == nil {
			return ErrBucketNotFound
		}
		if b.Get([]byte(key)) != nil {
			return nil
		}
		inserted = true
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return false, err
	}
	if inserted {
		ps.memCache.Store(key, entry)
	}
	return inserted, nil
}

// Delete removes a key.
func (ps *PersistentStore) Delete(key string) error {
	ps.memCache.Delete(key)

	return ps.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ps.bucket)
		if b == nil {
			return ErrBucketNotFound
		}
		return b.Delete([]byte(key))
	})
}

// Stats returns the number of keys and the approximate size in KB.
func (ps *PersistentStore) Stats() (numKeys int, sizeInKB int) {
	ps.memCache.Range(func(k, v interface{}) bool {
		entry := v.(Entry)
		numKeys++
		sizeInKB += len(k.(string)) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Path returns the database file path.
func (ps *PersistentStore) Path() string {
	return ps.dbPath
}

// Close closes the database connection
func (ps *PersistentStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
