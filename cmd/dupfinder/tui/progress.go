package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// maxLogLines is how many recent warnings the progress screen shows.
const maxLogLines = 3

// ProgressModel renders a running duplicate search.
type ProgressModel struct {
	progress  types.Progress
	spinner   spinner.Model
	startTime time.Time
	width     int
	height    int
	rootPath  string
	limit     limit.Limit
	stopping  bool
	done      bool
	err       error
}

// ProgressMsg is sent when the engine reports progress.
type ProgressMsg types.Progress

// NewProgressModel creates a progress model for a search of rootPath.
func NewProgressModel(rootPath string, l limit.Limit) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return ProgressModel{
		spinner:   s,
		startTime: time.Now(),
		width:     80,
		height:    24,
		rootPath:  rootPath,
		limit:     l,
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the progress model.
func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ProgressMsg:
		m.SetProgress(types.Progress(msg))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress screen.
func (m ProgressModel) View() string {
	var b strings.Builder

	contentWidth := max(m.width-4, 40)

	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderProgressBar(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	if logs := m.renderLogs(contentWidth); logs != "" {
		b.WriteString("\n")
		b.WriteString(logs)
	}

	content := b.String()
	contentLines := strings.Count(content, "\n") + 1
	if available := m.height - 2; available > contentLines {
		content += strings.Repeat("\n", available-contentLines)
	}

	return outerBoxStyle.Width(max(m.width-2, 0)).Height(max(m.height-2, 0)).Render(content)
}

func (m ProgressModel) renderHeader(width int) string {
	title := titleStyle.Render("  dupfinder") + mutedTextStyle.Render("  "+m.rootPath)
	hint := mutedTextStyle.Render("[q or Ctrl+C to stop]")

	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}

func (m ProgressModel) renderStatus(width int) string {
	switch {
	case m.done && m.err != nil:
		return errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err))
	case m.done && m.progress.State == types.StateHalted:
		return warningTextStyle.Render("  Stopped: " + m.limit.String() + " reached")
	case m.done:
		return successTextStyle.Render("  Search complete!")
	case m.stopping:
		return warningTextStyle.Render(fmt.Sprintf("  %s Stopping...", m.spinner.View()))
	}

	state := stateStyle.Render(fmt.Sprintf("%-10s", m.progress.State.String()))
	return fmt.Sprintf("  %s %s %s",
		m.spinner.View(),
		state,
		truncatePath(m.progress.CurrentPath, width-20))
}

// renderProgressBar draws a determinate bar when the limit gives a target
// and a pulsing bar otherwise.
func (m ProgressModel) renderProgressBar(width int) string {
	barWidth := max(width-4, 10)

	if frac, ok := m.fraction(); ok {
		filled := int(frac * float64(barWidth))
		return "  " +
			progressFillStyle.Render(strings.Repeat("█", filled)) +
			progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
	}

	elapsed := time.Since(m.startTime)
	position := int(elapsed.Seconds()*2) % (barWidth * 2)
	if position > barWidth {
		position = barWidth*2 - position
	}
	pulseWidth := max(barWidth/5, 3)

	var bar strings.Builder
	bar.WriteString("  ")
	for i := range barWidth {
		dist := i - position
		if dist < 0 {
			dist = -dist
		}
		if dist < pulseWidth {
			bar.WriteString(progressFillStyle.Render("█"))
		} else {
			bar.WriteString(progressEmptyStyle.Render("░"))
		}
	}
	return bar.String()
}

// fraction returns how much of the limit has been used.
func (m ProgressModel) fraction() (float64, bool) {
	var used, total int64
	switch m.limit.Kind() {
	case limit.KindCount:
		used, total = m.progress.Groups, m.limit.Value()
	case limit.KindBudget:
		used, total = m.progress.BytesSelected, m.limit.Value()
	default:
		return 0, false
	}
	if total <= 0 {
		return 0, false
	}
	return min(float64(used)/float64(total), 1), true
}

func (m ProgressModel) renderStats(totalWidth int) string {
	// Six bordered boxes separated by single spaces after a two-space indent.
	boxWidth := max((totalWidth-7)/6-2, 8)

	p := m.progress
	cacheVal := "-"
	if p.FilesHashed > 0 {
		cacheVal = fmt.Sprintf("%.0f%%", float64(p.CacheHits)/float64(p.FilesHashed)*100)
	}

	boxes := []string{
		m.renderStatBox("Files", humanize.Comma(p.FilesSeen), boxWidth),
		m.renderStatBox("Queued", humanize.Comma(p.Candidates), boxWidth),
		m.renderStatBox("Hashed", humanize.IBytes(uint64(p.BytesSelected)), boxWidth),
		m.renderStatBox("Groups", humanize.Comma(p.Groups), boxWidth),
		m.renderStatBox("Cache", cacheVal, boxWidth),
		m.renderStatBox("Time", formatDuration(time.Since(m.startTime)), boxWidth),
	}

	parts := []string{"  "}
	for i, box := range boxes {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m ProgressModel) renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-2),
		center(statsValueStyle.Render(value), width-2))

	return statsBoxStyle.Width(width).Render(content)
}

// renderLogs shows the latest warnings kept by the logging ring.
func (m ProgressModel) renderLogs(width int) string {
	ring := logging.Recent()
	if ring == nil {
		return ""
	}

	var lines []string
	for _, e := range ring.Last(logging.DefaultRingSize) {
		if e.Level < logging.LevelWarn {
			continue
		}
		lines = append(lines, e.Message)
	}
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	for i, line := range lines {
		lines[i] = warningTextStyle.Render("  ! " + truncatePath(line, width-6))
	}
	return strings.Join(lines, "\n")
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// SetProgress updates the progress.
func (m *ProgressModel) SetProgress(p types.Progress) {
	m.progress = p
}

// SetStopping marks that a stop was requested.
func (m *ProgressModel) SetStopping() {
	m.stopping = true
}

// SetDone marks the search as finished in state.
func (m *ProgressModel) SetDone(state types.State, err error) {
	m.done = true
	m.progress.State = state
	m.err = err
}

// IsDone reports whether the search finished.
func (m ProgressModel) IsDone() bool {
	return m.done
}

// Error returns any error from the search.
func (m ProgressModel) Error() error {
	return m.err
}
