// Package bridge connects an external voice agent to the running client.
//
// The agent pushes two kinds of events: music requests (free text or a list of
// title/artist pairs) and mood changes. Observers register with a Registry and
// receive every event until they unregister.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"moodtunes-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidPayload is returned for music payloads that are neither a string
// nor an array of pairs.
var ErrInvalidPayload = errors.New("invalid music payload")

// Mood is a presentational mood label.
type Mood string

const (
	MoodDefault     Mood = "default"
	MoodCalm        Mood = "calm"
	MoodEnergetic   Mood = "energetic"
	MoodFocus       Mood = "focus"
	MoodMelancholic Mood = "melancholic"
)

// Moods lists the recognised moods, excluding the default.
var Moods = []Mood{MoodCalm, MoodEnergetic, MoodFocus, MoodMelancholic}

// NormalizeMood maps label case-insensitively onto a known mood, falling back
// to MoodDefault.
func NormalizeMood(label string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(label)))
	for _, known := range Moods {
		if m == known {
			return m
		}
	}
	return MoodDefault
}

// Background returns the gradient variable for mood, or "" for the default
// mood which keeps the base background.
func Background(m Mood, dark bool) string {
	if m == MoodDefault || m == "" {
		return ""
	}
	if dark {
		return "--gradient-" + string(m) + "-dark"
	}
	return "--gradient-" + string(m)
}

// Pair is one requested song.
type Pair struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// MusicRequest is a decoded music payload. Exactly one of Query and Pairs is
// meaningful: IsQuery reports which.
type MusicRequest struct {
	Query   string
	Pairs   []Pair
	IsQuery bool
}

// ParseMusic decodes a JSON music payload: a string is a free-text query, an
// array holds title/artist pairs.
func ParseMusic(payload []byte) (MusicRequest, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return MusicRequest{}, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	var query string
	if err := json.Unmarshal(trimmed, &query); err == nil {
		return MusicRequest{Query: query, IsQuery: true}, nil
	}
	var pairs []Pair
	if err := json.Unmarshal(trimmed, &pairs); err != nil || pairs == nil {
		return MusicRequest{}, fmt.Errorf("%w: expected a string or an array of {title, artist}", ErrInvalidPayload)
	}
	return MusicRequest{Pairs: pairs}, nil
}

// Observer receives bridge events.
type Observer interface {
	OnMusic(ctx context.Context, req MusicRequest)
	OnMood(m Mood)
}

// ObserverFuncs adapts a pair of functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Music func(ctx context.Context, req MusicRequest)
	Mood  func(m Mood)
}

func (o ObserverFuncs) OnMusic(ctx context.Context, req MusicRequest) {
	if o.Music != nil {
		o.Music(ctx, req)
	}
}

func (o ObserverFuncs) OnMood(m Mood) {
	if o.Mood != nil {
		o.Mood(m)
	}
}

type registration struct {
	id  uint64
	obs Observer
}

// Registry fans bridge events out to registered observers in registration
// order.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	obs    []registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds obs and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (r *Registry) Register(obs Observer) (unregister func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.obs = append(r.obs, registration{id: id, obs: obs})
	r.mu.Unlock()

	log.Debugf("%s Observer %d registered", logcolors.LogBridge, id)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, reg := range r.obs {
			if reg.id == id {
				r.obs = append(r.obs[:i:i], r.obs[i+1:]...)
				log.Debugf("%s Observer %d unregistered", logcolors.LogBridge, id)
				return
			}
		}
	}
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.obs)
}

func (r *Registry) observers() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Observer, len(r.obs))
	for i, reg := range r.obs {
		out[i] = reg.obs
	}
	return out
}

// Music decodes payload and delivers it. Invalid payloads are logged and
// returned without reaching observers.
func (r *Registry) Music(ctx context.Context, payload []byte) error {
	req, err := ParseMusic(payload)
	if err != nil {
		log.Errorf("%s Rejected music payload: %v", logcolors.LogBridge, err)
		return err
	}
	r.PublishMusic(ctx, req)
	return nil
}

// PublishMusic delivers an already decoded request.
func (r *Registry) PublishMusic(ctx context.Context, req MusicRequest) {
	observers := r.observers()
	if req.IsQuery {
		log.Infof("%s Music query %q -> %d observers", logcolors.LogBridge, req.Query, len(observers))
	} else {
		log.Infof("%s Music list of %d songs -> %d observers", logcolors.LogBridge, len(req.Pairs), len(observers))
	}
	for _, obs := range observers {
		obs.OnMusic(ctx, req)
	}
}

// Mood normalizes label and delivers the result.
func (r *Registry) Mood(label string) Mood {
	m := NormalizeMood(label)
	observers := r.observers()
	log.Infof("%s Mood %q -> %s", logcolors.LogBridge, label, m)
	for _, obs := range observers {
		obs.OnMood(m)
	}
	return m
}
