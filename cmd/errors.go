/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/josephgoksu/voiceboard/internal/audio"
	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/journal"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/speech"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitPartial = 2
)

// partialError reports a run where some operations failed under --strict.
type partialError struct {
	failed int
	total  int
}

func (e *partialError) Error() string {
	return fmt.Sprintf("%d of %d operation(s) failed", e.failed, e.total)
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var partial *partialError
	if errors.As(err, &partial) {
		return ExitPartial
	}
	return ExitFailure
}

// PrintError prints an error to stderr. In verbose mode the full technical
// error is printed, otherwise a user-friendly message.
func PrintError(err error) {
	printError(os.Stderr, err, viper.GetBool("verbose"))
}

func printError(w io.Writer, err error, verbose bool) {
	if err == nil {
		return
	}
	if verbose {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, ui.RenderErrorPanel("Error", userMessage(err)))
}

// userMessage turns known failures into a short explanation.
func userMessage(err error) string {
	var cerr *config.ConfigurationError
	var partial *partialError
	switch {
	case errors.As(err, &cerr):
		return cerr.Error()
	case errors.As(err, &partial):
		return partial.Error() + " (see the report above)"
	case errors.Is(err, board.ErrStoreUnavailable):
		return "The task board could not be reached. Check store.apiKey, store.databaseId and your network connection."
	case errors.Is(err, speech.ErrEmptyTranscript):
		return "Nothing was heard in the recording."
	case errors.Is(err, speech.ErrTranscription):
		return "The recording could not be transcribed. Run with --verbose for details."
	case errors.Is(err, llm.ErrEngine):
		return "The interpretation engine failed. Run with --verbose for details."
	case errors.Is(err, journal.ErrRunNotFound):
		return "No run matches that id. List runs with: voiceboard history"
	default:
		return err.Error()
	}
}

// errorKind names the class of a failure for telemetry. It never contains
// user content.
func errorKind(err error) string {
	var cerr *config.ConfigurationError
	var partial *partialError
	switch {
	case errors.As(err, &cerr):
		return "configuration"
	case errors.As(err, &partial):
		return "partial"
	case errors.Is(err, board.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, speech.ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, speech.ErrTranscription):
		return "transcription"
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return "unsupported_audio"
	case errors.Is(err, llm.ErrEngine):
		return "engine"
	case errors.Is(err, ui.ErrNotInteractive):
		return "not_interactive"
	default:
		return "other"
	}
}
