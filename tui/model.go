// Package tui is the terminal front end of the client. It renders a
// session.Session and forwards keystrokes to it using bubbletea's Elm
// architecture.
//
// Three panes share the keyboard: the search box (with its suggestion
// dropdown), the result grid and the favorites sidebar. Tab cycles between
// them. Session changes made off the UI goroutine (debounce timers, agent
// events) arrive as changedMsg through a coalescing channel.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moodtunes-api-go/pagination"
	"moodtunes-api-go/services/catalog"
	"moodtunes-api-go/services/favorites"
	"moodtunes-api-go/services/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultSkeletonCount = 8

	noResults   = "No results found."
	noFavorites = "No favorites yet."
)

type pane int

const (
	searchPane pane = iota
	resultsPane
	favoritesPane
)

type changedMsg struct{}

type searchDoneMsg struct {
	query string
	err   error
}

type toggledMsg struct {
	song catalog.Song
	err  error
}

type Options struct {
	SkeletonCount int
}

// Model is the bubbletea model for the client.
type Model struct {
	ctx      context.Context
	session  *session.Session
	input    textinput.Model
	help     help.Model
	keys     keyMap
	focus    pane
	skeleton int

	resultSel  int
	favSel     int
	notice     string
	noticeBad  bool
	noticeUndo bool // notice still offers the pending undo
	changes    chan struct{}
	width      int
}

func New(ctx context.Context, s *session.Session, opts Options) *Model {
	if opts.SkeletonCount <= 0 {
		opts.SkeletonCount = DefaultSkeletonCount
	}

	input := textinput.New()
	input.Placeholder = "Search artists or songs..."
	input.Prompt = "🔎 "
	input.Focus()

	m := &Model{
		ctx:      ctx,
		session:  s,
		input:    input,
		help:     help.New(),
		keys:     newKeyMap(),
		skeleton: opts.SkeletonCount,
		changes:  make(chan struct{}, 1),
	}
	s.OnChange(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) runSearch(q string) tea.Cmd {
	return func() tea.Msg {
		return searchDoneMsg{query: q, err: m.session.Search().Run(m.ctx, q)}
	}
}

func (m *Model) retrySearch() tea.Cmd {
	return func() tea.Msg {
		flow := m.session.Search()
		return searchDoneMsg{query: flow.Query(), err: flow.Retry(m.ctx)}
	}
}

func (m *Model) toggle(song catalog.Song) tea.Cmd {
	return func() tea.Msg {
		return toggledMsg{song: song, err: m.session.Favorites().Toggle(m.ctx, song)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-8, 20)
		return m, nil

	case changedMsg:
		m.pullNotice()
		m.expireUndoHint()
		m.clampSelections()
		return m, m.waitForChange()

	case searchDoneMsg:
		m.resultSel = 0
		return m, nil

	case toggledMsg:
		if msg.err != nil && !errors.Is(msg.err, favorites.ErrSyncFailed) {
			m.setNotice(msg.err.Error(), true)
		}
		m.pullNotice()
		m.clampSelections()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+t":
			m.session.ToggleTheme()
			return m, nil
		case "ctrl+z":
			m.undo()
			return m, nil
		case "tab":
			return m, m.cycleFocus()
		}

		switch m.focus {
		case searchPane:
			return m.handleSearchKeys(msg)
		case resultsPane:
			return m.handleResultKeys(msg)
		case favoritesPane:
			return m.handleFavoriteKeys(msg)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(p pane) tea.Cmd {
	m.focus = p
	if p == searchPane {
		return m.input.Focus()
	}
	m.input.Blur()
	m.session.Suggestions().Escape()
	return nil
}

func (m *Model) cycleFocus() tea.Cmd {
	return m.setFocus((m.focus + 1) % 3)
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sugg := m.session.Suggestions()

	switch msg.String() {
	case "up":
		sugg.MoveUp()
		return m, nil
	case "down":
		if !sugg.MoveDown() && len(m.session.Search().Page()) > 0 {
			return m, m.setFocus(resultsPane)
		}
		return m, nil
	case "esc":
		sugg.Escape()
		return m, nil
	case "enter":
		q := m.session.Commit()
		if q != m.input.Value() {
			m.input.SetValue(q)
			m.input.CursorEnd()
			m.session.Type(q)
		}
		return m, m.runSearch(q)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.session.Type(after)
	}
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	flow := m.session.Search()
	page := flow.Page()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		return m, m.setFocus(searchPane)
	case key.Matches(msg, m.keys.up):
		if m.resultSel > 0 {
			m.resultSel--
		}
	case key.Matches(msg, m.keys.down):
		if m.resultSel < len(page)-1 {
			m.resultSel++
		}
	case key.Matches(msg, m.keys.next):
		if flow.NextPage() {
			m.resultSel = 0
		}
	case key.Matches(msg, m.keys.prev):
		if flow.PrevPage() {
			m.resultSel = 0
		}
	case key.Matches(msg, m.keys.favorite):
		if m.resultSel < len(page) {
			return m, m.toggle(page[m.resultSel])
		}
	case key.Matches(msg, m.keys.undo):
		m.undo()
	case key.Matches(msg, m.keys.retry):
		if flow.Err() != nil {
			return m, m.retrySearch()
		}
	}
	return m, nil
}

func (m *Model) handleFavoriteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	favs := m.session.Favorites()
	page := favs.Page()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		return m, m.setFocus(searchPane)
	case key.Matches(msg, m.keys.up):
		if m.favSel > 0 {
			m.favSel--
		}
	case key.Matches(msg, m.keys.down):
		if m.favSel < len(page)-1 {
			m.favSel++
		}
	case key.Matches(msg, m.keys.next):
		if favs.NextPage() {
			m.favSel = 0
		}
	case key.Matches(msg, m.keys.prev):
		if favs.PrevPage() {
			m.favSel = 0
		}
	case key.Matches(msg, m.keys.favorite), msg.String() == "x":
		if m.favSel < len(page) {
			return m, m.toggle(page[m.favSel])
		}
	case key.Matches(msg, m.keys.undo):
		m.undo()
	}
	return m, nil
}

func (m *Model) undo() {
	if song, ok := m.session.Favorites().Undo(); ok {
		m.setNotice(fmt.Sprintf("Restored %s", song.Title), false)
	}
}

const undoHint = " (u to undo)"

func (m *Model) setNotice(text string, bad bool) {
	m.notice = text
	m.noticeBad = bad
	m.noticeUndo = false
}

func (m *Model) pullNotice() {
	if n, ok := m.session.TakeNotice(); ok {
		m.setNotice(n.Message, n.Kind == favorites.Failure)
		if n.Undo {
			m.notice += undoHint
			m.noticeUndo = true
		}
	}
}

// expireUndoHint drops the undo hint once the undo window has closed.
func (m *Model) expireUndoHint() {
	if !m.noticeUndo {
		return
	}
	if _, pending := m.session.Favorites().Pending(); !pending {
		m.notice = strings.TrimSuffix(m.notice, undoHint)
		m.noticeUndo = false
	}
}

func (m *Model) clampSelections() {
	if n := len(m.session.Search().Page()); m.resultSel >= n {
		m.resultSel = max(n-1, 0)
	}
	if n := len(m.session.Favorites().Page()); m.favSel >= n {
		m.favSel = max(n-1, 0)
	}
}

// View renders the whole screen.
func (m *Model) View() string {
	p := paletteFor(m.session.Dark())

	var b strings.Builder
	b.WriteString(m.renderHeader(p))
	b.WriteString("\n")
	b.WriteString(m.renderSearch(p))
	b.WriteString("\n")

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderResults(p), " ", m.renderFavorites(p))
	b.WriteString(body)
	b.WriteString("\n")

	if m.notice != "" {
		style := p.ok
		if m.noticeBad {
			style = p.err
		}
		b.WriteString(style.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) helpKeys() []key.Binding {
	switch m.focus {
	case resultsPane:
		return []key.Binding{m.keys.up, m.keys.down, m.keys.favorite, m.keys.next, m.keys.prev, m.keys.retry, m.keys.focus, m.keys.quit}
	case favoritesPane:
		return []key.Binding{m.keys.up, m.keys.down, m.keys.favorite, m.keys.undo, m.keys.focus, m.keys.quit}
	default:
		return []key.Binding{m.keys.enter, m.keys.escape, m.keys.focus, m.keys.theme}
	}
}

func (m *Model) renderHeader(p *Palette) string {
	theme := "☀️"
	if m.session.Dark() {
		theme = "🌙"
	}
	title := fmt.Sprintf("🎵 MoodTunes  %s  mood: %s", theme, m.session.Mood())
	return headerStyle(p, m.session.Background()).Render(p.title.Render(title))
}

func (m *Model) renderSearch(p *Palette) string {
	box := p.blurred
	if m.focus == searchPane {
		box = p.focused
	}

	var b strings.Builder
	b.WriteString(m.input.View())

	st := m.session.Suggestions().State()
	if st.Visible() {
		for i, s := range st.Items {
			line := fmt.Sprintf("  %s · %s", s.Title, s.Author)
			if i == st.Highlight {
				line = p.highlight.Render("▸ " + s.Title + " · " + s.Author)
			}
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return box.Render(b.String())
}

func (m *Model) renderResults(p *Palette) string {
	box := p.blurred
	if m.focus == resultsPane {
		box = p.focused
	}

	snap := m.session.Search().Snapshot()
	favs := m.session.Favorites()

	var b strings.Builder
	b.WriteString(p.title.Render("Results"))
	b.WriteString("\n")

	switch {
	case snap.Busy:
		for i := 0; i < m.skeleton; i++ {
			b.WriteString(p.skeleton.Render("░░░░░░░░░░░░░░░░  ░░░░░░░░"))
			b.WriteString("\n")
		}
	case snap.Err != nil:
		b.WriteString(p.err.Render("Search failed. Press r to retry."))
		b.WriteString("\n")
	case len(snap.Page) == 0:
		b.WriteString(noResults)
		b.WriteString("\n")
	default:
		for i, song := range snap.Page {
			heart := "🤍"
			if favs.Contains(song.ID) {
				heart = "❤️"
			}
			line := fmt.Sprintf("%s %s — %s %s", heart, song.Title, song.Author, p.style.Render("["+song.Style+"]"))
			if m.focus == resultsPane && i == m.resultSel {
				line = p.selected.Render("▸ ") + line
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if snap.TotalPages > 1 {
			b.WriteString(p.muted.Render(fmt.Sprintf("Page %d of %d", snap.PageNum, snap.TotalPages)))
			b.WriteString("\n")
		}
	}
	return box.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderFavorites(p *Palette) string {
	box := p.blurred
	if m.focus == favoritesPane {
		box = p.focused
	}

	favs := m.session.Favorites()
	page := favs.Page()

	var b strings.Builder
	b.WriteString(p.title.Render("⭐ Favorites"))
	b.WriteString("\n")
	if favs.Len() == 0 {
		b.WriteString(noFavorites)
		return box.Render(b.String())
	}
	for i, song := range page {
		line := fmt.Sprintf("%s — %s", song.Title, song.Author)
		if m.focus == favoritesPane && i == m.favSel {
			line = p.selected.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	cur := favs.Cursor()
	if total := pagination.TotalPages(favs.Len(), cur.Size); total > 1 {
		b.WriteString(p.muted.Render(fmt.Sprintf("Page %d of %d", cur.Page, total)))
	}
	return box.Render(strings.TrimRight(b.String(), "\n"))
}
