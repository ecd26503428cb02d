package output

import (
	"bytes"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter formats output using a custom Go text/template.
// The template receives the Report plus TotalFiles and TotalWasted.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

type templateData struct {
	*Report
	TotalFiles  int
	TotalWasted int64
}

// NewTemplateFormatter creates a new template formatter with the given template string.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Usage: {{date .ModTime "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},

		// Usage: {{bytes .Size}}
		"bytes": func(size int64) string {
			if size < 0 {
				return "-" + humanize.IBytes(uint64(-size))
			}
			return humanize.IBytes(uint64(size))
		},
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	return f.template.Execute(w, templateData{
		Report:      r,
		TotalFiles:  r.Files(),
		TotalWasted: r.Wasted(),
	})
}

// DefaultTemplate is used when no custom template is provided.
const DefaultTemplate = `{{range .Groups}}{{bytes .Size}}	{{.Checksum.Short}}
{{range .Files}}	{{.Path}}
{{end}}{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(DefaultTemplate)
	})
}

// Ensure TemplateFormatter implements Formatter.
var _ Formatter = (*TemplateFormatter)(nil)
