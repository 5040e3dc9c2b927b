package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/tunebridge/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
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

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Status colors a connection status.
func (p *Palette) Status(s models.ConnectionStatus) string {
	switch s {
	case models.Connected:
		return p.OK(s.String())
	case models.ConnectionError:
		return p.Err(s.String())
	case models.Connecting:
		return p.Warn(s.String())
	default:
		return p.Help(s.String())
	}
}

// Outcome colors a sync outcome.
func (p *Palette) Outcome(o models.SyncOutcome) string {
	switch o.Kind {
	case models.OutcomeMatched, models.OutcomeCreated:
		return p.OK(o.String())
	case models.OutcomeError:
		return p.Err(o.String())
	case models.OutcomeUnmatched:
		return p.Warn(o.String())
	default:
		return p.Help(o.String())
	}
}
