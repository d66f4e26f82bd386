package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

var (
	spotifyGreen = lipgloss.AdaptiveColor{Light: "#1AA34A", Dark: "#1DB954"}
	errorRed     = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5F5F"}
	warnAmber    = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB74D"}
	mutedGray    = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
)

var styles = NewPalette(spotifyGreen, errorRed, warnAmber, mutedGray)

// Palette holds the named styles every view renders with.
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	banner lipgloss.Style
}

func NewPalette(accent, bad, caution, muted lipgloss.TerminalColor) *Palette {
	return &Palette{
		title:  lipgloss.NewStyle().Foreground(accent).Bold(true).MarginBottom(1),
		ok:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		err:    lipgloss.NewStyle().Foreground(bad).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(caution),
		help:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		banner: lipgloss.NewStyle().Background(accent).Foreground(lipgloss.Color("#000000")).Bold(true).Padding(0, 1),
	}
}

// styleList applies the palette to a bubbles list and its default delegate.
func (p *Palette) styleList(l *list.Model) {
	l.Styles.Title = p.banner

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(spotifyGreen).BorderLeftForeground(spotifyGreen)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(spotifyGreen).BorderLeftForeground(spotifyGreen)
	l.SetDelegate(delegate)
}
