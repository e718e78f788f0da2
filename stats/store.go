package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"moodtunes-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store handles persistent storage for stats
type Store struct {
	db       *bolt.DB
	dbPath   string
	target   *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	// Cumulative counters (these accumulate across restarts)
	TotalRequests      int64 `json:"total_requests"`
	RegisterRequests   int64 `json:"register_requests"`
	LoginRequests      int64 `json:"login_requests"`
	MeRequests         int64 `json:"me_requests"`
	StatsRequests      int64 `json:"stats_requests"`
	HealthRequests     int64 `json:"health_requests"`
	OtherRequests      int64 `json:"other_requests"`
	Registrations      int64 `json:"registrations"`
	DuplicateSignups   int64 `json:"duplicate_signups"`
	ValidationFailures int64 `json:"validation_failures"`
	LoginSuccesses     int64 `json:"login_successes"`
	LoginFailures      int64 `json:"login_failures"`
	TokenRejections    int64 `json:"token_rejections"`
	RateLimitAllowed   int64 `json:"rate_limit_allowed"`
	RateLimitExceeded  int64 `json:"rate_limit_exceeded"`
	Status2xx          int64 `json:"status_2xx"`
	Status4xx          int64 `json:"status_4xx"`
	Status5xx          int64 `json:"status_5xx"`

	// Response time tracking
	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`
	AuthResponseTime  int64 `json:"auth_response_time"`
	AuthResponseCount int64 `json:"auth_response_count"`

	// Metadata
	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore creates a stats store for the global stats with a dedicated BoltDB file
func NewStore(dbPath string) (*Store, error) {
	return newStoreFor(dbPath, Get())
}

func newStoreFor(dbPath string, target *Stats) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %v", err)
	}

	store := &Store{
		db:       db,
		dbPath:   dbPath,
		target:   target,
		stopChan: make(chan struct{}),
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return store, nil
}

// Load reads persisted stats from disk and applies them to the tracked stats
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil // No persisted stats yet
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})

	if err != nil {
		return fmt.Errorf("failed to load stats: %v", err)
	}
	if !found {
		return nil
	}

	st := s.target

	st.TotalRequests.Store(persisted.TotalRequests)
	st.RegisterRequests.Store(persisted.RegisterRequests)
	st.LoginRequests.Store(persisted.LoginRequests)
	st.MeRequests.Store(persisted.MeRequests)
	st.StatsRequests.Store(persisted.StatsRequests)
	st.HealthRequests.Store(persisted.HealthRequests)
	st.OtherRequests.Store(persisted.OtherRequests)
	st.Registrations.Store(persisted.Registrations)
	st.DuplicateSignups.Store(persisted.DuplicateSignups)
	st.ValidationFailures.Store(persisted.ValidationFailures)
	st.LoginSuccesses.Store(persisted.LoginSuccesses)
	st.LoginFailures.Store(persisted.LoginFailures)
	st.TokenRejections.Store(persisted.TokenRejections)
	st.RateLimitAllowed.Store(persisted.RateLimitAllowed)
	st.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	st.Status2xx.Store(persisted.Status2xx)
	st.Status4xx.Store(persisted.Status4xx)
	st.Status5xx.Store(persisted.Status5xx)
	st.totalResponseTime.Store(persisted.TotalResponseTime)
	st.responseCount.Store(persisted.ResponseCount)
	st.authResponseTime.Store(persisted.AuthResponseTime)
	st.authResponseCount.Store(persisted.AuthResponseCount)

	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < noMin {
		st.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		st.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	// Preserve the original first start time if available
	if !persisted.FirstStarted.IsZero() {
		st.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))

	return nil
}

// Save persists current stats to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.target

	persisted := PersistedStats{
		TotalRequests:      st.TotalRequests.Load(),
		RegisterRequests:   st.RegisterRequests.Load(),
		LoginRequests:      st.LoginRequests.Load(),
		MeRequests:         st.MeRequests.Load(),
		StatsRequests:      st.StatsRequests.Load(),
		HealthRequests:     st.HealthRequests.Load(),
		OtherRequests:      st.OtherRequests.Load(),
		Registrations:      st.Registrations.Load(),
		DuplicateSignups:   st.DuplicateSignups.Load(),
		ValidationFailures: st.ValidationFailures.Load(),
		LoginSuccesses:     st.LoginSuccesses.Load(),
		LoginFailures:      st.LoginFailures.Load(),
		TokenRejections:    st.TokenRejections.Load(),
		RateLimitAllowed:   st.RateLimitAllowed.Load(),
		RateLimitExceeded:  st.RateLimitExceeded.Load(),
		Status2xx:          st.Status2xx.Load(),
		Status4xx:          st.Status4xx.Load(),
		Status5xx:          st.Status5xx.Load(),
		TotalResponseTime:  st.totalResponseTime.Load(),
		ResponseCount:      st.responseCount.Load(),
		MinResponseTime:    st.minResponseTime.Load(),
		MaxResponseTime:    st.maxResponseTime.Load(),
		AuthResponseTime:   st.authResponseTime.Load(),
		AuthResponseCount:  st.authResponseCount.Load(),
		LastSaved:          time.Now(),
		FirstStarted:       st.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %v", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save stats: %v", err)
	}

	return nil
}

// StartAutoSave begins periodic saving of stats
func (s *Store) StartAutoSave(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	if err := s.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return s.db.Close()
}
