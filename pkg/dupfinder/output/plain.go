package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// PlainFormatter formats output as a tab-aligned table with one row per
// duplicate file. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprint(tw, "GROUP\tSIZE\tCHECKSUM\tPATH\n"); err != nil {
		return err
	}

	for i, g := range r.Groups {
		size := types.FormatSize(g.Size)
		sum := g.Checksum.Short()
		for _, file := range g.Files {
			if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, size, sum, file.Path); err != nil {
				return err
			}
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)

// PathsFormatter prints the member paths of each group, one per line, with
// a blank line between groups. Suitable for piping to other tools.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Report) error {
	for i, g := range r.Groups {
		if i > 0 {
			w.WriteByte('\n')
		}
		for _, file := range g.Files {
			w.WriteString(file.Path)
			w.WriteByte('\n')
		}
	}
	return nil
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

// Ensure PathsFormatter implements Formatter.
var _ Formatter = (*PathsFormatter)(nil)
