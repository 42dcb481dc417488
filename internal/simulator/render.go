package simulator

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/fuser/internal/ir"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2980B9")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F8C8D"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C3E50"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E67E22")).Bold(true)
	balanceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
)

// View is everything the panel shows.
type View struct {
	Entries []ir.Entry
	Timings ir.CycleTimings
	State   Snapshot
}

// Render draws the input history beside the agent status.
func Render(v View) string {
	left := panelStyle.Render(renderHistory(v.Entries))
	right := panelStyle.Render(renderStatus(v))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func renderHistory(entries []ir.Entry) string {
	earliest := earliestOf(entries)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Input History"))
	b.WriteByte('\n')
	if len(entries) == 0 {
		b.WriteString(labelStyle.Render("(no inputs yet)"))
		return b.String()
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s :: %s :: %s", seconds(e.Timestamp.Sub(earliest)), e.Source, oneLine(e.Value))
		b.WriteByte('\n')
		b.WriteString(textStyle.Render(line))
	}
	return b.String()
}

func renderStatus(v View) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Current Action"))
	b.WriteByte('\n')
	b.WriteString(accentStyle.Render(strings.ToUpper(v.State.Action)))
	b.WriteString("\n\n")

	writeField(&b, "Speech:", v.State.LastSpeech)
	writeField(&b, "Emotion:", v.State.Emotion)
	b.WriteString(labelStyle.Render("Balance:"))
	b.WriteByte(' ')
	b.WriteString(balanceStyle.Render(v.State.Balance))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("System Status"))
	b.WriteByte('\n')
	earliest := earliestOf(v.Entries)
	t := v.Timings
	writeField(&b, "Fuse time:", since(earliest, t.FuseEnd))
	writeField(&b, "LLM start:", since(earliest, t.DecisionStart))
	writeField(&b, "Processing:", since(t.DecisionStart, t.DecisionEnd))
	writeField(&b, "Complete:", since(earliest, t.DecisionEnd))

	b.WriteByte('\n')
	b.WriteString(titleStyle.Render("Last Commands"))
	if len(v.State.Commands) == 0 {
		b.WriteByte('\n')
		b.WriteString(labelStyle.Render("(none)"))
	}
	for _, c := range v.State.Commands {
		b.WriteByte('\n')
		b.WriteString(textStyle.Render("- " + c.String()))
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		value = "-"
	}
	b.WriteString(labelStyle.Render(label))
	b.WriteByte(' ')
	b.WriteString(textStyle.Render(value))
	b.WriteByte('\n')
}

func earliestOf(entries []ir.Entry) time.Time {
	var earliest time.Time
	for _, e := range entries {
		if earliest.IsZero() || e.Timestamp.Before(earliest) {
			earliest = e.Timestamp
		}
	}
	return earliest
}

// since renders to-from in seconds, or "-" when either end is unknown.
func since(from, to time.Time) string {
	if from.IsZero() || to.IsZero() {
		return "-"
	}
	return seconds(to.Sub(from))
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
