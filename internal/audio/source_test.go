package audio

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/inbox/Memo.M4A", []byte("data"), 0o644))

	a, err := Load(fs, "/inbox/Memo.M4A")
	require.NoError(t, err)
	assert.Equal(t, "Memo.M4A", a.Filename)
	assert.Equal(t, "audio/mp4", a.ContentType)
	assert.Equal(t, []byte("data"), a.Data)
}

func TestLoad_Rejects(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/empty.wav", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("hi"), 0o644))

	_, err := Load(fs, "/empty.wav")
	assert.Error(t, err)

	_, err = Load(fs, "/notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(fs, "/missing.wav")
	assert.Error(t, err)
}

func TestFromReader(t *testing.T) {
	a, err := FromReader(strings.NewReader("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", a.ContentType)

	_, err = FromReader(strings.NewReader(""))
	assert.Error(t, err)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("a.wav"))
	assert.True(t, IsAudioFile("a.WebM"))
	assert.False(t, IsAudioFile("a.wav.part"))
}
