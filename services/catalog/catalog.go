// Package catalog is a client for the public iTunes search endpoint.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moodtunes-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://itunes.apple.com/search"
	DefaultSearchLimit  = 50
	DefaultSuggestLimit = 10
	DefaultTimeout      = 5 * time.Second

	// UnknownStyle is used when a track has no genre.
	UnknownStyle = "Unknown"

	artistPause = 100 * time.Millisecond
)

// ErrUpstream matches every *Error with errors.Is.
var ErrUpstream = errors.New("catalog upstream error")

// Error describes a failed catalog call.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrUpstream }

// Song is a playable catalog track.
type Song struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Style   string `json:"style"`
	Cover   string `json:"cover,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// Suggestion is a lightweight autocomplete entry.
type Suggestion struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Cover  string `json:"cover,omitempty"`
}

type track struct {
	TrackID          int64  `json:"trackId"`
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	PrimaryGenreName string `json:"primaryGenreName"`
	ArtworkURL100    string `json:"artworkUrl100"`
	ArtworkURL60     string `json:"artworkUrl60"`
	PreviewURL       string `json:"previewUrl"`
}

func (t track) song() Song {
	style := t.PrimaryGenreName
	if style == "" {
		style = UnknownStyle
	}
	return Song{
		ID:      t.TrackID,
		Title:   t.TrackName,
		Author:  t.ArtistName,
		Style:   style,
		Cover:   t.ArtworkURL100,
		Preview: t.PreviewURL,
	}
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL      string
	SearchLimit  int
	SuggestLimit int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client issues catalog searches. It performs no retries.
type Client struct {
	baseURL      string
	searchLimit  int
	suggestLimit int
	httpClient   *http.Client
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.SuggestLimit <= 0 {
		opts.SuggestLimit = DefaultSuggestLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:      opts.BaseURL,
		searchLimit:  opts.SearchLimit,
		suggestLimit: opts.SuggestLimit,
		httpClient:   opts.HTTPClient,
	}
}

// componentUnescaper restores the characters a URI component leaves bare.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeQuery percent-encodes a search term as a URI component (space is %20).
func EncodeQuery(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func (c *Client) buildURL(term string, limit int) string {
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + "term=" + EncodeQuery(term) + "&media=music&entity=song&limit=" + strconv.Itoa(limit)
}

// fetch runs one GET and returns the decoded results. A missing or malformed
// results field yields an empty slice.
func (c *Client) fetch(ctx context.Context, op, term string, limit int) ([]track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(term, limit), nil)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{Op: op, Status: resp.StatusCode}
	}

	var body struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	var results []track
	if len(body.Results) > 0 {
		if err := json.Unmarshal(body.Results, &results); err != nil {
			log.Warnf("%s Malformed results for %q: %v", logcolors.LogCatalog, term, err)
			return []track{}, nil
		}
	}
	if results == nil {
		results = []track{}
	}
	return results, nil
}

// Search returns up to the search limit of songs for query.
func (c *Client) Search(ctx context.Context, query string) ([]Song, error) {
	if strings.TrimSpace(query) == "" {
		return []Song{}, nil
	}

	results, err := c.fetch(ctx, "search", query, c.searchLimit)
	if err != nil {
		log.Errorf("%s Search %q failed: %v", logcolors.LogCatalog, query, err)
		return nil, err
	}

	songs := make([]Song, len(results))
	for i, t := range results {
		songs[i] = t.song()
	}
	log.Debugf("%s Search %q returned %d songs", logcolors.LogCatalog, query, len(songs))
	return songs, nil
}

// Suggest returns raw autocomplete candidates; callers deduplicate.
func (c *Client) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	if strings.TrimSpace(query) == "" {
		return []Suggestion{}, nil
	}

	results, err := c.fetch(ctx, "suggest", query, c.suggestLimit)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, len(results))
	for i, t := range results {
		out[i] = Suggestion{ID: t.TrackID, Title: t.TrackName, Author: t.ArtistName, Cover: t.ArtworkURL60}
	}
	return out, nil
}

// Lookup returns the best match for a title/artist pair, or nil when the
// catalog has none.
func (c *Client) Lookup(ctx context.Context, title, artist string) (*Song, error) {
	term := strings.TrimSpace(title + " " + artist)
	if term == "" {
		return nil, nil
	}

	results, err := c.fetch(ctx, "lookup", term, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	s := results[0].song()
	return &s, nil
}

// SearchArtists searches each artist in turn and concatenates the results.
// Failed artists are skipped.
func (c *Client) SearchArtists(ctx context.Context, artists []string) []Song {
	all := []Song{}
	pace := rate.NewLimiter(rate.Every(artistPause), 1)
	for _, artist := range artists {
		if err := pace.Wait(ctx); err != nil {
			return all
		}
		songs, err := c.Search(ctx, artist)
		if err != nil {
			log.Warnf("%s Failed to fetch songs for %s: %v", logcolors.LogCatalog, artist, err)
			continue
		}
		all = append(all, songs...)
	}
	return all
}
