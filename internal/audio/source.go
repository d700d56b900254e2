// Package audio loads recorded utterances from disk or stdin.
package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephgoksu/voiceboard/internal/speech"
)

// MaxSize is the largest recording accepted (hosted engines cap uploads at 25MB).
const MaxSize = 25 << 20

// ErrUnsupportedFormat is returned for files without a known audio extension.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".mpeg": "audio/mpeg",
	".mpga": "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	_, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ContentType returns the MIME type for path's extension.
func ContentType(path string) (string, error) {
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	return ct, nil
}

// Load reads a recording from fs.
func Load(fs afero.Fs, path string) (speech.Audio, error) {
	contentType, err := ContentType(path)
	if err != nil {
		return speech.Audio{}, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	return read(f, filepath.Base(path), contentType)
}

// FromReader reads a WAV recording from r (used for stdin).
func FromReader(r io.Reader) (speech.Audio, error) {
	return read(r, "stdin.wav", "audio/wav")
}

func read(r io.Reader, name, contentType string) (speech.Audio, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return speech.Audio{}, fmt.Errorf("read recording: %w", err)
	}
	if len(data) == 0 {
		return speech.Audio{}, fmt.Errorf("recording %s is empty", name)
	}
	if len(data) > MaxSize {
		return speech.Audio{}, fmt.Errorf("recording %s exceeds %d bytes", name, MaxSize)
	}
	return speech.Audio{Data: data, Filename: name, ContentType: contentType}, nil
}
