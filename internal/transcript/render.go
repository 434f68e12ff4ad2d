package transcript

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	Title       = "OpenAI Speech to Text Translation"
	Subtitle    = "Speak in any language and get translated into English"
	Placeholder = "Translation will be shown here"

	StartLabel = "Start Recording"
	StopLabel  = "Stop Recording"
)

// Styles used by Render.
type Styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Button    lipgloss.Style
	Line      lipgloss.Style
	Streaming lipgloss.Style
	Hint      lipgloss.Style
}

// DefaultStyles matches the capture CLI's color scheme.
func DefaultStyles() Styles {
	primary := lipgloss.Color("#00ff9f")
	dim := lipgloss.Color("#6e7681")
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(primary),
		Subtitle:  lipgloss.NewStyle().Foreground(dim),
		Button:    lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(primary),
		Line:      lipgloss.NewStyle(),
		Streaming: lipgloss.NewStyle().Italic(true).Foreground(primary),
		Hint:      lipgloss.NewStyle().Italic(true).Foreground(dim),
	}
}

// Label returns the call-to-action for the recording state.
func Label(recording bool) string {
	if recording {
		return StopLabel
	}
	return StartLabel
}

// Render draws the header, the recording label, the finalized lines in
// order and then the in-progress line. The placeholder is shown until
// there is any text.
func Render(snap Snapshot, recording bool, st Styles) string {
	out := []string{
		st.Title.Render(Title),
		st.Subtitle.Render(Subtitle),
		"",
		st.Button.Render(Label(recording)),
		"",
	}

	if snap.Empty() {
		out = append(out, st.Hint.Render(Placeholder))
		return strings.Join(out, "\n")
	}
	for _, line := range snap.Lines {
		out = append(out, st.Line.Render(line))
	}
	if snap.Current != "" {
		out = append(out, st.Streaming.Render(snap.Current))
	}
	return strings.Join(out, "\n")
}
