package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// maxPrettyErrors caps the error list in pretty output.
const maxPrettyErrors = 10

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	w.WriteString(f.formatGroups(r))

	w.WriteString(f.formatFooter(r))

	if len(r.Summary.Errors) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatErrors(r.Summary.Errors))
	}
	w.WriteString("\n")

	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Root:"), ValueStyle.Render(r.Root)))

	var info []string
	if r.Limit != "" {
		info = append(info, fmt.Sprintf("%s %s", LabelStyle.Render("Limit:"), ValueStyle.Render(r.Limit)))
	}
	if r.Algorithm != "" {
		info = append(info, fmt.Sprintf("%s %s", LabelStyle.Render("Hash:"), ValueStyle.Render(r.Algorithm)))
	}
	info = append(info, fmt.Sprintf("%s %s",
		LabelStyle.Render("Scanned:"),
		ValueStyle.Render(fmt.Sprintf("%d files in %s", r.Summary.FilesSeen, formatDuration(r.Summary.Elapsed)))))
	lines = append(lines, strings.Join(info, "  "))

	switch {
	case r.Interrupted:
		lines = append(lines, WarningStyle.Bold(true).Render("Search interrupted by user"))
	case r.Halted():
		lines = append(lines, WarningStyle.Render(fmt.Sprintf(
			"Stopped by limit: %d files (%s) not examined",
			r.Summary.SkippedFiles, humanize.IBytes(uint64(r.Summary.SkippedBytes)))))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatGroups(r *Report) string {
	if len(r.Groups) == 0 {
		return TitleStyle.Render("  No duplicates were found.") + "\n"
	}

	var sb strings.Builder
	for i, g := range r.Groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		header := fmt.Sprintf("%d duplicates of size %s",
			len(g.Files), humanize.IBytes(uint64(g.Size)))
		sb.WriteString(GroupHeaderStyle.Render(header))
		sb.WriteString("  ")
		sb.WriteString(ChecksumStyle.Render(g.Checksum.Short()))
		sb.WriteString("  ")
		sb.WriteString(WastedStyle.Render(humanize.IBytes(uint64(g.Wasted())) + " wasted"))
		sb.WriteString("\n")

		for _, file := range g.Files {
			sb.WriteString(MemberStyle.Render(PathStyle.Render(file.Path)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	s := r.Summary
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Groups:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Groups)))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Files:"), ValueStyle.Render(fmt.Sprintf("%d", r.Files()))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Wasted:"), WastedStyle.Render(humanize.IBytes(uint64(r.Wasted())))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Hashed:"), SizeStyle.Render(humanize.IBytes(uint64(s.BytesSelected)))),
	}
	if s.CacheHits+s.CacheMisses > 0 {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Cache:"),
			SuccessStyle.Render(fmt.Sprintf("%d/%d hits", s.CacheHits, s.CacheHits+s.CacheMisses))))
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatErrors(errs []types.FileError) string {
	var lines []string
	lines = append(lines, ErrorStyle.Bold(true).Render(fmt.Sprintf("%d files could not be processed:", len(errs))))
	for i, e := range errs {
		if i == maxPrettyErrors {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("  ... and %d more (see the log)", len(errs)-maxPrettyErrors)))
			break
		}
		lines = append(lines, ErrorStyle.Render("  "+e.Error()))
	}
	return ErrorBox.Render(strings.Join(lines, "\n"))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
