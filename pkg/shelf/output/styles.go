package output

import "github.com/charmbracelet/lipgloss"

// Color constants using the ANSI 256-color palette, shared by every
// styled formatter.
const (
	// ColorPrimary marks headers and moves (bright blue).
	ColorPrimary = lipgloss.Color("39")

	// ColorSuccess marks committed operations and copies (green).
	ColorSuccess = lipgloss.Color("42")

	// ColorWarning marks warnings and pending suggestions (orange).
	ColorWarning = lipgloss.Color("214")

	// ColorDanger marks failures and deletes (red).
	ColorDanger = lipgloss.Color("196")

	// ColorMuted is used for labels, undone entries and secondary text (gray).
	ColorMuted = lipgloss.Color("245")

	// ColorAccent marks archives and the arrow between paths (purple).
	ColorAccent = lipgloss.Color("141")
)

// Box styles for grouped content.
var (
	// HeaderBox frames the report header with the organized directory.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox frames the summary counts.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

// Text styles for the report body.
var (
	// TitleStyle is used for the report title.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// LabelStyle is used for field labels such as "Source:".
	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// ValueStyle is used for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	// SuccessStyle is used for committed entries.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// WarningStyle is used for warnings and entries awaiting confirmation.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// ErrorStyle is used for failed entries and their reasons.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger)

	// MutedStyle is used for undone entries and less important text.
	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// PathStyle is used for source and destination paths.
	PathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	// ArrowStyle separates a source from its destination.
	ArrowStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	// TableHeaderStyle is used for column headings.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted)
)

// actionStyles colors the action column.
var actionStyles = map[string]lipgloss.Style{
	"move":    lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
	"rename":  lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
	"copy":    lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
	"archive": lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),
	"delete":  lipgloss.NewStyle().Foreground(ColorDanger).Bold(true),
}

// ActionStyle returns the style for an action name.
func ActionStyle(action string) lipgloss.Style {
	if s, ok := actionStyles[action]; ok {
		return s
	}
	return ValueStyle
}

// StatusStyle returns the style for an entry status.
func StatusStyle(s Status) lipgloss.Style {
	switch s {
	case StatusCommitted, StatusActive:
		return SuccessStyle
	case StatusFailed:
		return ErrorStyle
	case StatusUndone:
		return MutedStyle
	default:
		return WarningStyle
	}
}
