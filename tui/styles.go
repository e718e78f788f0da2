package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette is the stylesheet for one theme.
type Palette struct {
	title     lipgloss.Style
	header    lipgloss.Style
	focused   lipgloss.Style
	blurred   lipgloss.Style
	selected  lipgloss.Style
	highlight lipgloss.Style
	muted     lipgloss.Style
	style     lipgloss.Style
	ok        lipgloss.Style
	err       lipgloss.Style
	skeleton  lipgloss.Style
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func newPalette(accent, text, muted, ok, bad, panel string) *Palette {
	border := lipgloss.RoundedBorder()
	return &Palette{
		title:     NewBold(accent),
		header:    lipgloss.NewStyle().Bold(true).Padding(0, 1),
		focused:   lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color(accent)).Padding(0, 1),
		blurred:   lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color(muted)).Padding(0, 1),
		selected:  NewBold(accent),
		highlight: lipgloss.NewStyle().Foreground(lipgloss.Color(text)).Background(lipgloss.Color(panel)),
		muted:     NewEm(muted),
		style:     NewStyle(muted),
		ok:        NewBold(ok),
		err:       NewBold(bad),
		skeleton:  NewStyle(muted),
	}
}

var (
	lightPalette = newPalette("#7D56F4", "#1A1A1A", "#8A8A8A", "#04B575", "#D7263D", "#E8E3FF")
	darkPalette  = newPalette("#B39DFF", "#F2F2F2", "#626262", "#3DDC97", "#FF5C5C", "#3B2F6B")
)

func paletteFor(dark bool) *Palette {
	if dark {
		return darkPalette
	}
	return lightPalette
}

// moodColors maps a mood gradient variable to the header background.
var moodColors = map[string]string{
	"--gradient-calm":             "#A8E6CF",
	"--gradient-calm-dark":        "#1F4E3D",
	"--gradient-energetic":        "#FFB26B",
	"--gradient-energetic-dark":   "#7A3B00",
	"--gradient-focus":            "#9AD0EC",
	"--gradient-focus-dark":       "#1B3A57",
	"--gradient-melancholic":      "#C3B1E1",
	"--gradient-melancholic-dark": "#2E1F47",
}

func headerStyle(p *Palette, background string) lipgloss.Style {
	s := p.header
	if c, ok := moodColors[background]; ok {
		s = s.Background(lipgloss.Color(c))
	}
	return s
}
