package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"moodtunes-api-go/config"
	"moodtunes-api-go/services/authclient"
	"moodtunes-api-go/services/bridge"
	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/services/favorites"
	"moodtunes-api-go/services/search"
	"moodtunes-api-go/services/session"
	"moodtunes-api-go/services/suggest"
	"moodtunes-api-go/store"

	"github.com/urfave/cli/v3"
)

// tokenKey holds the session token saved by login.
const tokenKey = "auth_token"

// Runner holds the dependencies shared by every command.
type Runner struct {
	conf       config.Config
	catalog    *catalog.Client
	auth       *authclient.Client
	httpClient *http.Client
	output     io.Writer
}

type RunnerOpts struct {
	Config     *config.Config
	HTTPClient *http.Client
	Output     io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	conf := config.Get()
	if opts.Config != nil {
		conf = *opts.Config
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	c := conf.Configuration
	cat := catalog.NewClient(catalog.Options{
		BaseURL:      c.CatalogBaseURL,
		SearchLimit:  c.SearchLimit,
		SuggestLimit: c.AutocompleteLimit,
		Timeout:      conf.CatalogTimeout(),
		HTTPClient:   opts.HTTPClient,
	})

	return &Runner{
		conf:       conf,
		catalog:    cat,
		auth:       authclient.New(c.AuthServerURL, opts.HTTPClient),
		httpClient: opts.HTTPClient,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		searchCommand, registerCommand, loginCommand, logoutCommand, meCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) openStore() (*store.PersistentStore, error) {
	ps, err := store.NewPersistentStore(r.conf.Configuration.ClientDBPath, "", r.conf.FeatureFlags.StoreCompression)
	if err != nil {
		return nil, fmt.Errorf("opening client store: %w", err)
	}
	return ps, nil
}

func (r *Runner) newSession(storage session.Storage, reg *bridge.Registry) *session.Session {
	c := r.conf.Configuration
	return session.New(session.Options{
		Catalog:  r.catalog,
		Storage:  storage,
		Registry: reg,
		Search: search.Options{
			MaxQueryLength: c.MaxQueryLength,
			PageSize:       c.ItemsPerPage,
		},
		Suggest: suggest.Options{
			Delay: r.conf.DebounceDelay(),
			Cap:   c.SuggestionCap,
		},
		Favorites: favorites.Options{
			PageSize:   c.FavItemsPerPage,
			UndoWindow: r.conf.UndoWindow(),
			Syncer:     favorites.DelaySyncer{Delay: r.conf.SyncDelay()},
		},
	})
}

func (r *Runner) writeJSON(data any) error {
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Runner) writePlain(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}

func (r *Runner) writePlainln(s string) {
	fmt.Fprintln(r.output, s)
}
