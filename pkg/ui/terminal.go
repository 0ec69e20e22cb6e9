package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color functions for terminal output
var (
	Cyan   = colorize(lipgloss.Color("6"))
	Yellow = colorize(lipgloss.Color("3"))
	Red    = colorize(lipgloss.Color("1"))
	Green  = colorize(lipgloss.Color("2"))
)

// clearLine erases the rest of the current terminal line
const clearLine = "\033[K"

// colorize returns a function that renders text in the given color
func colorize(color lipgloss.Color) func(string) string {
	style := lipgloss.NewStyle().Foreground(color)
	return func(text string) string {
		return style.Render(text)
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintError prints an error message in red to stderr
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(os.Stderr, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}
