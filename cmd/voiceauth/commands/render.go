package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-voiceauth/pkg/screens"
)

var (
	colorPrimary = lipgloss.Color("#00ff9f")
	colorDim     = lipgloss.Color("#6e7681")
	colorOK      = lipgloss.Color("#3fb950")
	colorWarn    = lipgloss.Color("#d29922")
	colorFail    = lipgloss.Color("#f85149")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	phraseStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2).
			Bold(true)
)

var bandColors = map[screens.Band]lipgloss.Color{
	screens.BandExcellent: colorOK,
	screens.BandGood:      colorOK,
	screens.BandModerate:  colorWarn,
	screens.BandLow:       colorFail,
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okStyle.Render("✓ ")+fmt.Sprintf(format, args...))
}

func printFailure(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, failStyle.Render("✗ ")+fmt.Sprintf(format, args...))
}

func printHint(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf(format, args...)))
}

// printPhrase shows the challenge phrase the user must read aloud.
func printPhrase(w io.Writer, phrase string) {
	fmt.Fprintln(w, dimStyle.Render("Read this phrase aloud:"))
	fmt.Fprintln(w, phraseStyle.Render(phrase))
}

// printNotice renders a multi-line screen notice, first line emphasised.
func printNotice(w io.Writer, notice string, ok bool) {
	if notice == "" {
		return
	}
	head, rest, _ := strings.Cut(notice, "\n")
	if ok {
		printSuccess(w, "%s", head)
	} else {
		printFailure(w, "%s", head)
	}
	if rest = strings.TrimSpace(rest); rest != "" {
		fmt.Fprintln(w, rest)
	}
}

// printResult renders a verification outcome with its similarity band.
func printResult(w io.Writer, r *screens.ResultView) {
	if r == nil {
		return
	}
	if r.Authenticated {
		printSuccess(w, "%s", r.Title)
	} else {
		printFailure(w, "%s", r.Title)
	}

	band := lipgloss.NewStyle().Bold(true).Foreground(bandColors[r.Band])
	if r.UserID != "" {
		fmt.Fprintf(w, "  User:       %s\n", r.UserID)
	}
	fmt.Fprintf(w, "  Similarity: %s\n", band.Render(r.Percent))
	fmt.Fprintf(w, "  %s\n", dimStyle.Render(r.Interpretation))
}
