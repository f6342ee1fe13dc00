package client

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	headingColor = color.New(color.Bold)
)

// Render prints o for a terminal. Language and citations are printed only
// when the result carries them; a skipped outcome prints nothing.
func Render(w io.Writer, o Outcome) {
	switch o.State {
	case StateSuccess:
		fmt.Fprintln(w, o.Result.Text)
		if o.Result.Language != "" {
			headingColor.Fprint(w, "Language:")
			fmt.Fprintf(w, " %s\n", o.Result.Language)
		}
		if len(o.Result.Citations) > 0 {
			headingColor.Fprintln(w, "Citations:")
			for _, c := range o.Result.Citations {
				fmt.Fprintf(w, "- %s\n", c)
			}
		}
	case StateError:
		errorColor.Fprintf(w, "Error: %s\n", o.Message)
	case StateUnexpectedFormat:
		warnColor.Fprintln(w, "Unexpected response format from server.")
	}
}

// RenderError prints err the way an error outcome is printed.
func RenderError(w io.Writer, err error) {
	Render(w, Outcome{State: StateError, Message: err.Error()})
}
