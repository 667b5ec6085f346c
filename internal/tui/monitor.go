// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audiotools/internal/analysis"
)

const (
	defaultRefresh  = 50 * time.Millisecond
	defaultBarWidth = 40
	maxBandRows     = 16
)

// FeatureSource is the read side of the analysis pipeline.
type FeatureSource interface {
	Features() analysis.Features
	BandEnergies(dst []float32) []float32
}

// StatsFunc reports processed and gated buffer counts.
type StatsFunc func() (processed, gated uint64)

type tickMsg time.Time

// MonitorModel redraws the latest frame's features on a fixed interval.
type MonitorModel struct {
	title    string
	source   FeatureSource
	stats    StatsFunc
	interval time.Duration

	features analysis.Features
	bands    []float32
	width    int
}

func NewMonitorModel(title string, source FeatureSource, stats StatsFunc) MonitorModel {
	return MonitorModel{
		title:    title,
		source:   source,
		stats:    stats,
		interval: defaultRefresh,
		width:    defaultBarWidth,
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(10, min(msg.Width-labelStyle.GetWidth()-12, 80))
	case tickMsg:
		m.features = m.source.Features()
		m.bands = m.source.BandEnergies(m.bands)
		return m, m.tick()
	}
	return m, nil
}

func (m MonitorModel) View() string {
	f := m.features
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	row("RMS", m.meter(f.RootMeanSquare, 1)+fmt.Sprintf(" %.4f", f.RootMeanSquare))
	row("Peak", m.meter(f.PeakEnergy, 1)+fmt.Sprintf(" %.4f", f.PeakEnergy))
	row("ZCR", fmt.Sprintf("%.4f", f.ZeroCrossingRate))
	row("Centroid", fmt.Sprintf("%.1f bins (%.0f Hz)", f.Centroid, f.CentroidHz))
	row("Flatness", fmt.Sprintf("%.4f", f.Flatness))
	row("Crest", fmt.Sprintf("%.2f", f.Crest))
	row("Rolloff", fmt.Sprintf("%.1f", f.Rolloff))
	row("Kurtosis", fmt.Sprintf("%.2f", f.Kurtosis))

	sb.WriteString("\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lamp("KICK", f.Kick), lamp("SNARE", f.Snare), lamp("HIHAT", f.HiHat)))
	sb.WriteString("\n\n")

	sb.WriteString(m.renderBands())

	if m.stats != nil {
		processed, gated := m.stats()
		sb.WriteString(infoStyle.Render(fmt.Sprintf("\nframes %d • gated %d", processed, gated)))
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// renderBands folds the sub-bands into at most maxBandRows rows scaled to
// the loudest row.
func (m MonitorModel) renderBands() string {
	if len(m.bands) == 0 {
		return ""
	}
	rows := min(len(m.bands), maxBandRows)
	per := len(m.bands) / rows
	folded := make([]float32, rows)
	var loudest float32
	for r := range folded {
		for _, e := range m.bands[r*per : (r+1)*per] {
			folded[r] += e
		}
		loudest = max(loudest, folded[r])
	}

	var sb strings.Builder
	for r, e := range folded {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("band %2d", r)))
		sb.WriteString(m.meter(e, loudest))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m MonitorModel) meter(value, full float32) string {
	return barStyle.Render(bar(value, full, m.width))
}

// bar renders value/full as a run of block characters padded to width.
func bar(value, full float32, width int) string {
	filled := 0
	if full > 0 && value > 0 {
		filled = int(value / full * float32(width))
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func lamp(name string, on bool) string {
	if on {
		return beatOnStyle.Render(name)
	}
	return beatOffStyle.Render(name)
}

// RunMonitor blocks until the user quits.
func RunMonitor(title string, source FeatureSource, stats StatsFunc) error {
	p := tea.NewProgram(NewMonitorModel(title, source, stats), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
