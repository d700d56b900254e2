package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]bool
	calls map[string]int
}

func (h *recordingHandler) handle(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	name := filepath.Base(path)
	h.seen = append(h.seen, name)
	if h.calls == nil {
		h.calls = map[string]int{}
	}
	h.calls[name]++
	if h.fail[name] {
		return errors.New("transcription failed")
	}
	return nil
}

func (h *recordingHandler) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func startInbox(t *testing.T, dir string, debounce time.Duration, h *recordingHandler) *Inbox {
	t.Helper()
	inbox, err := New(Config{Dir: dir, Debounce: debounce, Handler: h.handle})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- inbox.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("inbox did not stop")
		}
	})
	return inbox
}

func waitOutcome(t *testing.T, inbox *Inbox) Outcome {
	t.Helper()
	select {
	case out := <-inbox.Results():
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome")
		return Outcome{}
	}
}

func TestInbox_ProcessesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memo.m4a"), []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0o644))

	h := &recordingHandler{}
	inbox := startInbox(t, dir, 30*time.Millisecond, h)

	out := waitOutcome(t, inbox)
	require.NoError(t, out.Err)
	assert.Equal(t, filepath.Join(dir, ProcessedDir, "memo.m4a"), out.MovedTo)
	assert.FileExists(t, out.MovedTo)
	assert.NoFileExists(t, filepath.Join(dir, "memo.m4a"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.Equal(t, 1, h.count("memo.m4a"))
	assert.Zero(t, h.count("notes.txt"))
}

func TestInbox_NewFileAfterStart(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{fail: map[string]bool{"bad.wav": true}}
	inbox := startInbox(t, dir, 300*time.Millisecond, h)

	// Give the watcher a moment to register.
	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("part"), 0o644))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("-rest")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out := waitOutcome(t, inbox)
	require.Error(t, out.Err)
	assert.Equal(t, filepath.Join(dir, FailedDir, "bad.wav"), out.MovedTo)

	data, err := os.ReadFile(out.MovedTo)
	require.NoError(t, err)
	assert.Equal(t, "part-rest", string(data))
	assert.Equal(t, 1, h.count("bad.wav"))
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir()})
	assert.Error(t, err)

	_, err = New(Config{Dir: filepath.Join(t.TempDir(), "missing"), Handler: (&recordingHandler{}).handle})
	assert.Error(t, err)

	dir := t.TempDir()
	_, err = New(Config{Dir: dir, Handler: (&recordingHandler{}).handle})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, ProcessedDir))
	assert.DirExists(t, filepath.Join(dir, FailedDir))
}

func TestMove_NameTaken(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.mp3"), []byte("old"), 0o644))
	src := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	target, err := move(src, dest)
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Join(dest, "a.mp3"), target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
