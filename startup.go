package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/auth"
	"moodtunes-api-go/stats"
	"moodtunes-api-go/store"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

const (
	usersBucket       = "users"
	statsSaveInterval = 5 * time.Minute
)

// openUserStore picks PostgreSQL when DATABASE_URL is set and the bbolt
// key-value store otherwise. The returned func releases it.
func openUserStore(ctx context.Context) (auth.UserStore, func(), error) {
	if url := conf.Configuration.DatabaseURL; url != "" {
		pg, err := auth.NewPostgresStore(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		log.Infof("%s Users stored in PostgreSQL", logcolors.LogStoreInit)
		return pg, pg.Close, nil
	}

	kv, err := store.NewPersistentStore(conf.Configuration.UsersDBPath, usersBucket, conf.FeatureFlags.StoreCompression)
	if err != nil {
		return nil, nil, fmt.Errorf("opening user store: %w", err)
	}
	usersKV = kv
	users := auth.NewKVStore(kv)
	log.Infof("%s Users stored in %s (%d existing)", logcolors.LogStoreInit, kv.Path(), users.Count())
	return users, func() {
		if err := kv.Close(); err != nil {
			log.Warnf("%s Failed to close user store: %v", logcolors.LogStore, err)
		}
	}, nil
}

// startStats restores persisted counters and saves them periodically.
// Failures only cost persistence, so they are logged and ignored.
func startStats() *stats.Store {
	st, err := stats.NewStore(conf.Configuration.StatsDBPath)
	if err != nil {
		log.Warnf("%s Stats persistence disabled: %v", logcolors.LogStats, err)
		return nil
	}
	if err := st.Load(); err != nil {
		log.Warnf("%s Failed to load stats: %v", logcolors.LogStats, err)
	}
	st.StartAutoSave(statsSaveInterval)
	return st
}

func corsMiddleware(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   conf.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(next)
}
