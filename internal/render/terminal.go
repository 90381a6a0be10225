package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"doc-chat/internal/session"
)

var (
	userLabel      = color.New(color.FgCyan, color.Bold)
	assistantLabel = color.New(color.FgGreen, color.Bold)
	errorLabel     = color.New(color.FgRed)
	infoLabel      = color.New(color.FgYellow)
)

// Entry prints one conversation entry with a colored role label.
func Entry(w io.Writer, e session.Entry) {
	label := assistantLabel
	name := "assistant"
	if e.Role == session.RoleUser {
		label = userLabel
		name = "you"
	}
	label.Fprintf(w, "%s> ", name)
	fmt.Fprintln(w, e.Content)
}

// Transcript prints every entry of the session's conversation, oldest first.
func Transcript(w io.Writer, s session.Session) {
	for _, e := range s.Log.Entries() {
		Entry(w, e)
	}
}

// Error prints a failure line.
func Error(w io.Writer, format string, args ...any) {
	errorLabel.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Info prints a hint line.
func Info(w io.Writer, format string, args ...any) {
	infoLabel.Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}
