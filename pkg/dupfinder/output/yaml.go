package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// yamlOutput mirrors jsonOutput with YAML keys.
type yamlOutput struct {
	Groups  []yamlGroup `yaml:"groups"`
	Summary yamlSummary `yaml:"summary"`
	Meta    yamlMeta    `yaml:"meta"`
}

type yamlGroup struct {
	Checksum  string   `yaml:"checksum"`
	Size      int64    `yaml:"size"`
	SizeHuman string   `yaml:"size_human"`
	Wasted    int64    `yaml:"wasted"`
	Files     []string `yaml:"files"`
}

type yamlSummary struct {
	State         string   `yaml:"state"`
	FilesSeen     int64    `yaml:"files_seen"`
	FilesHashed   int64    `yaml:"files_hashed"`
	BytesSelected int64    `yaml:"bytes_selected"`
	CacheHits     int64    `yaml:"cache_hits"`
	SkippedFiles  int64    `yaml:"skipped_files"`
	Duration      string   `yaml:"duration"`
	Errors        []string `yaml:"errors,omitempty"`
}

type yamlMeta struct {
	Root        string `yaml:"root"`
	Limit       string `yaml:"limit,omitempty"`
	Algorithm   string `yaml:"algorithm,omitempty"`
	TotalGroups int    `yaml:"total_groups"`
	TotalWasted int64  `yaml:"total_wasted"`
	Interrupted bool   `yaml:"interrupted"`
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(f.buildOutput(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func (f *YAMLFormatter) buildOutput(r *Report) yamlOutput {
	groups := make([]yamlGroup, len(r.Groups))
	for i, g := range r.Groups {
		jg := newJSONGroup(g)
		groups[i] = yamlGroup{
			Checksum:  jg.Checksum,
			Size:      jg.Size,
			SizeHuman: jg.SizeHuman,
			Wasted:    jg.Wasted,
			Files:     g.Paths(),
		}
	}

	s := r.Summary
	var errs []string
	for _, e := range s.Errors {
		errs = append(errs, e.Error())
	}

	return yamlOutput{
		Groups: groups,
		Summary: yamlSummary{
			State:         s.State.String(),
			FilesSeen:     s.FilesSeen,
			FilesHashed:   s.FilesHashed,
			BytesSelected: s.BytesSelected,
			CacheHits:     s.CacheHits,
			SkippedFiles:  s.SkippedFiles,
			Duration:      formatDurationString(s.Elapsed),
			Errors:        errs,
		},
		Meta: yamlMeta{
			Root:        r.Root,
			Limit:       r.Limit,
			Algorithm:   r.Algorithm,
			TotalGroups: len(r.Groups),
			TotalWasted: r.Wasted(),
			Interrupted: r.Interrupted,
		},
	}
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
