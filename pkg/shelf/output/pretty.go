package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

var titles = map[Kind]string{
	KindSuggestions: "Suggestions",
	KindResults:     "Organized",
	KindHistory:     "History",
	KindUndo:        "Undo",
}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatEntries(r))
	w.WriteString(f.formatFooter(r))
	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	title := titles[r.Kind]
	if r.DryRun {
		title += WarningStyle.Render(" (dry run)")
	}
	lines := []string{TitleStyle.Render(title)}
	if r.Source != "" {
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Source:"), ValueStyle.Render(r.Source)))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatEntries(r *Report) string {
	if len(r.Entries) == 0 {
		if r.Kind == KindSuggestions {
			return MutedStyle.Render("  Nothing to organize\n")
		}
		return MutedStyle.Render("  No operations\n")
	}

	actionWidth := len("ACTION")
	for _, e := range r.Entries {
		actionWidth = max(actionWidth, len(e.Action))
	}

	var sb strings.Builder
	for _, e := range r.Entries {
		sb.WriteString("  ")
		if e.ID != 0 {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("#%-4d ", e.ID)))
		}
		sb.WriteString(ActionStyle(e.Action).Render(padRight(e.Action, actionWidth)))
		sb.WriteString("  ")
		sb.WriteString(PathStyle.Render(e.Source))
		if e.Destination != "" {
			sb.WriteString(ArrowStyle.Render(" → "))
			sb.WriteString(PathStyle.Render(e.Destination))
		}
		sb.WriteString("\n")

		var details []string
		if r.Kind != KindSuggestions {
			details = append(details, StatusStyle(e.Status).Render(string(e.Status)))
		}
		if e.Rule != "" {
			details = append(details, LabelStyle.Render("rule ")+ValueStyle.Render(e.Rule))
		}
		if e.Confidence != nil {
			details = append(details, LabelStyle.Render("confidence ")+ValueStyle.Render(confidence(e.Confidence)))
		}
		if e.SizeHuman != "" {
			details = append(details, MutedStyle.Render(e.SizeHuman))
		}
		if e.Confirm {
			details = append(details, WarningStyle.Render("needs confirmation"))
		}
		if e.When != "" {
			details = append(details, MutedStyle.Render(e.When))
		}
		if len(details) > 0 {
			sb.WriteString("  " + strings.Repeat(" ", actionWidth+2) + strings.Join(details, MutedStyle.Render(" · ")) + "\n")
		}
		if e.Reason != "" {
			sb.WriteString("  " + strings.Repeat(" ", actionWidth+2) + ErrorStyle.Render(e.Reason) + "\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	s := r.Summary()
	parts := []string{fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), ValueStyle.Render(fmt.Sprintf("%d", s.Total)))}

	switch r.Kind {
	case KindSuggestions:
		if s.TotalSize > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Size:"),
				ValueStyle.Render(humanize.IBytes(uint64(s.TotalSize)))))
		}
	default:
		parts = append(parts, SuccessStyle.Render(fmt.Sprintf("%d ok", s.OK)))
		if s.Failed > 0 {
			parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", s.Failed)))
		}
	}
	if r.Elapsed > 0 {
		parts = append(parts, MutedStyle.Render(r.Elapsed.Round(time.Millisecond).String()))
	}
	if r.Kind == KindResults && s.OK > 0 {
		parts = append(parts, MutedStyle.Render("Use shelf undo --all-recent to revert"))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

// padRight pads s with spaces on the right to width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
