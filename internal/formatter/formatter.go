// package formatter renders run summaries and plan listings for the terminal
package formatter

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/quietriver/waveplan/internal/pipeline"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/shared"
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
}

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

func NewPalette(t, s, e, w, d string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		dim:   NewEm(d),
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

// FormatStats renders a run's track tally as styled terminal text.
func FormatStats(stats pipeline.Stats, interrupted bool) string {
	var buf bytes.Buffer

	buf.WriteString(styles.title.Render("Download Summary"))
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("%s %d\n", styles.ok.Render("Completed:"), stats.Completed))
	buf.WriteString(fmt.Sprintf("%s %d\n", styles.err.Render("Failed:"), stats.Failed))
	buf.WriteString(fmt.Sprintf("%s %d\n", styles.warn.Render("Pending:"), stats.Pending))
	if stats.InProgress > 0 {
		buf.WriteString(fmt.Sprintf("%s %d\n", styles.warn.Render("In progress:"), stats.InProgress))
	}
	buf.WriteString(fmt.Sprintf("%s %d\n", styles.dim.Render("Total tracks:"), stats.Total))

	if interrupted {
		buf.WriteString(styles.warn.Render("Run interrupted; re-run to resume pending tracks."))
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatPlan renders a plan listing grouped by item type, with per-item
// status markers and failure messages.
func FormatPlan(p *plan.Plan) string {
	var buf bytes.Buffer

	buf.WriteString(styles.title.Render("Plan"))
	buf.WriteString("\n")

	types := []plan.ItemType{
		plan.TypeTrack, plan.TypeAlbum, plan.TypeArtist,
		plan.TypePlaylist, plan.TypePlaylistFile,
	}
	for _, t := range types {
		items := p.ByType(t)
		if len(items) == 0 {
			continue
		}

		buf.WriteString(fmt.Sprintf("%s (%d)\n", styles.dim.Render(string(t)), len(items)))
		for _, it := range items {
			buf.WriteString(fmt.Sprintf("  %s %s\n", statusMarker(it.Status), it.Name))
			if it.Error != "" {
				buf.WriteString(fmt.Sprintf("    %s\n", styles.dim.Render(it.Error)))
			}
		}
	}

	return buf.String()
}

// StatsJSON returns the tally as pretty-printed JSON for machine consumers.
func StatsJSON(stats pipeline.Stats) ([]byte, error) {
	return shared.MarshalJSON(stats, true)
}

// statusMarker maps a status to a one-character colored marker.
func statusMarker(s plan.Status) string {
	switch s {
	case plan.StatusCompleted:
		return styles.ok.Render("✓")
	case plan.StatusFailed:
		return styles.err.Render("✗")
	case plan.StatusSkipped:
		return styles.dim.Render("-")
	case plan.StatusInProgress:
		return styles.warn.Render("~")
	default:
		return styles.dim.Render("·")
	}
}
