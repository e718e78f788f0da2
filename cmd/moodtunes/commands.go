package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moodtunes-api-go/pagination"
	"moodtunes-api-go/services/authclient"
	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/utils"

	"github.com/urfave/cli/v3"
)

var errNotLoggedIn = errors.New("not logged in: run `moodtunes login` first")

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the music catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Fetch songs for each artist in turn (repeatable)",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page of results to print",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

func registerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account on the auth server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "username", Required: true},
		},
		Action: r.Register,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and remember the session token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the saved session token",
		Action: r.Logout,
	}
}

func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show the logged in user",
		Action: r.Me,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive terminal UI (default)",
		Action: r.TUI,
	}
}

// Search prints one page of catalog results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	artists := cmd.StringSlice("artist")
	query := utils.TruncateRunes(strings.TrimSpace(cmd.StringArg("query")), r.conf.Configuration.MaxQueryLength)

	var songs []catalog.Song
	switch {
	case len(artists) > 0:
		songs = r.catalog.SearchArtists(ctx, artists)
	case query != "":
		var err error
		if songs, err = r.catalog.Search(ctx, query); err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	default:
		return fmt.Errorf("provide a query or at least one --artist")
	}

	size := r.conf.Configuration.ItemsPerPage
	page := cmd.Int("page")
	shown := pagination.Slice(songs, size, page)

	if cmd.Bool("json") {
		return r.writeJSON(shown)
	}

	if len(shown) == 0 {
		r.writePlainln("No results found.")
		return nil
	}
	for i, s := range shown {
		r.writePlain("%2d. %s — %s [%s]\n", (page-1)*size+i+1, s.Title, s.Author, s.Style)
	}
	if total := pagination.TotalPages(len(songs), size); total > 1 {
		r.writePlain("\nPage %d of %d\n", page, total)
	}
	return nil
}

func (r *Runner) printAuthError(err error) error {
	var apiErr *authclient.Error
	if errors.As(err, &apiErr) {
		r.writePlain("✗ %s\n", apiErr.Message)
		for _, d := range apiErr.Details {
			r.writePlain("  • %s: %s\n", d.Field, d.Message)
		}
	}
	return err
}

// Register creates an account.
func (r *Runner) Register(ctx context.Context, cmd *cli.Command) error {
	reg, err := r.auth.Register(ctx, cmd.String("email"), cmd.String("password"), cmd.String("username"))
	if err != nil {
		return r.printAuthError(err)
	}
	r.writePlain("✓ %s (%s)\n", reg.Message, reg.Username)
	return nil
}

// Login stores the token in the client database.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.auth.Login(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return r.printAuthError(err)
	}

	ps, err := r.openStore()
	if err != nil {
		return err
	}
	defer ps.Close()
	if err := ps.Set(tokenKey, sess.Token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	r.writePlain("✓ Logged in as %s\n", sess.Username)
	return nil
}

// Logout removes the saved token. Logging out twice is not an error.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	ps, err := r.openStore()
	if err != nil {
		return err
	}
	defer ps.Close()
	if err := ps.Delete(tokenKey); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	r.writePlainln("✓ Logged out")
	return nil
}

// Me prints the identity behind the saved token.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	ps, err := r.openStore()
	if err != nil {
		return err
	}
	token, ok := ps.Get(tokenKey)
	ps.Close()
	if !ok || token == "" {
		return errNotLoggedIn
	}

	id, err := r.auth.Me(ctx, token)
	if err != nil {
		return r.printAuthError(err)
	}
	r.writePlain("%s (%s)\n", id.Username, id.ID)
	return nil
}
