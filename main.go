package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodtunes-api-go/config"
	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/auth"
	"moodtunes-api-go/store"

	log "github.com/sirupsen/logrus"
)

var conf = config.Get()

var (
	authService *auth.Service
	// usersKV is nil when users live in PostgreSQL.
	usersKV *store.PersistentStore
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	if level, err := log.ParseLevel(conf.Configuration.LogLevel); err == nil {
		log.SetLevel(level)
	}
}

func main() {
	if err := conf.Validate(); err != nil {
		log.Fatalf("%s Invalid configuration: %v", logcolors.LogConfig, err)
	}
	if conf.UsesDevSecret() {
		log.Warnf("%s JWT_SECRET is the development default; set a real secret in production", logcolors.LogWarning)
	}

	ctx := context.Background()
	users, closeUsers, err := openUserStore(ctx)
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogStoreInit, err)
	}
	defer closeUsers()

	authService = auth.NewService(users, auth.Options{
		Secret:   []byte(conf.Configuration.JWTSecret),
		TokenTTL: conf.TokenTTL(),
		Cost:     conf.Configuration.BcryptSaltRounds,
	})

	if st := startStats(); st != nil {
		defer st.Close()
	}

	srv := &http.Server{
		Addr:         ":" + conf.Configuration.Port,
		Handler:      newHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, conf.Configuration.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s %v", logcolors.LogServer, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Infof("%s Shutting down...", logcolors.LogServer)
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}
}
