package output

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter formats a report with a Go text/template. The template
// sees the Report fields plus Summary.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

type templateData struct {
	*Report
	Summary Summary
}

// NewTemplateFormatter creates a formatter for templateStr.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{templateStr: templateStr}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// {{date .Time "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		// {{bytes .Size}}
		"bytes": func(size int64) string {
			return humanize.IBytes(uint64(max(size, 0)))
		},
		// {{percent .Confidence}}
		"percent": func(c *float64) string {
			if c == nil {
				return ""
			}
			return fmt.Sprintf("%.0f%%", *c*100)
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
			return fmt.Errorf("parsing template: %w", err)
		}
		f.template = tmpl
	}
	return f.template.Execute(w, templateData{Report: r, Summary: r.Summary()})
}

const defaultTemplate = `{{range .Entries}}{{.Action}}	{{.Source}}	{{.Destination}}
{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
