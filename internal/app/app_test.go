package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/board/boardtest"
	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/journal"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/speech"
	"github.com/josephgoksu/voiceboard/internal/telemetry"
)

const noDeletes = `package voiceboard.policy

import rego.v1

deny contains msg if {
	input.operation.kind == "delete"
	msg := "deletes are disabled"
}
`

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AppConfig{
		DataDir:   dir,
		LogFormat: config.DefaultLogFormat,
		Engine:    config.EngineConfig{Provider: string(llm.ProviderOpenAI), Timeout: time.Second},
		Reconcile: config.ReconcileConfig{
			Refresh:    string(reconcile.RefreshPerOperation),
			Dedupe:     true,
			Reposition: string(reconcile.RepositionNoopWhenUnsupported),
			Assignee:   string(reconcile.AssigneeSkipUnknown),
			Directory:  string(board.FailSoftEmptyOnError),
		},
		Policy:  config.PolicyConfig{Dir: "/policies", Package: policy.DefaultPolicyPackage},
		Prompts: config.PromptsConfig{Dir: "/prompts"},
		Journal: config.JournalConfig{Enabled: true, Path: dir},
		Watch:   config.WatchConfig{Debounce: time.Second},
	}
}

func replyWith(response string) llm.Engine {
	return llm.EngineFunc(func(context.Context, string, string) (string, error) {
		return response, nil
	})
}

type fixedTranscriber string

func (f fixedTranscriber) Transcribe(context.Context, speech.Audio) (string, error) {
	return string(f), nil
}

func newTestApp(t *testing.T, cfg *config.AppConfig, opts Options) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RunsAndJournals(t *testing.T) {
	store := boardtest.NewStore(nil, nil)
	cfg := testConfig(t)
	a := newTestApp(t, cfg, Options{
		Fs:        afero.NewMemMapFs(),
		Store:     store,
		Engine:    replyWith(`[{"kind":"create","task":"Write report","status":"InProgress"}]`),
		Telemetry: telemetry.NewNoopClient(),
	})

	report, err := a.Pipeline.RunTranscript(context.Background(), "add write report, I'm on it")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, store.Named("Write report"), 1)
	assert.Equal(t, board.StatusInProgress, store.Named("Write report")[0].Status)

	require.NotNil(t, a.Journal)
	assert.Equal(t, filepath.Join(cfg.DataDir, journal.FileName), a.Journal.Path())
	runs, err := a.Journal.ListRuns(context.Background(), journal.ListRunsOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
}

func TestNew_PolicyGateDeniesAndRecordsDecision(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/no_deletes.rego", []byte(noDeletes), 0o644))
	store := boardtest.NewStore([]board.Task{{Name: "Call vendor"}}, nil)

	a := newTestApp(t, testConfig(t), Options{
		Fs:     fs,
		Store:  store,
		Engine: replyWith(`[{"kind":"delete","task":"Call vendor"}]`),
	})
	assert.Equal(t, 1, a.Policy.PolicyCount())

	report, err := a.Pipeline.RunTranscript(context.Background(), "delete call vendor")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].OK())
	assert.Contains(t, report.Results[0].Reason, "deletes are disabled")
	assert.Len(t, store.Live(), 1)

	decisions, err := a.Journal.ListDecisions(context.Background(), journal.ListDecisionsOptions{RunID: report.RunID})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].IsAllowed())
}

func TestNew_CustomSystemInstruction(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/prompts/system_instruction.txt", []byte("Only output JSON."), 0o644))

	var seen string
	engine := llm.EngineFunc(func(_ context.Context, _ string, system string) (string, error) {
		seen = system
		return "[]", nil
	})
	a := newTestApp(t, testConfig(t), Options{Fs: fs, Store: boardtest.NewStore(nil, nil), Engine: engine})

	_, err := a.Pipeline.Plan(context.Background(), "nothing to do")
	require.NoError(t, err)
	assert.Equal(t, "Only output JSON.", seen)
}

func TestNew_EngineNotNeeded(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	a := newTestApp(t, cfg, Options{Fs: afero.NewMemMapFs(), Store: boardtest.NewStore(nil, nil)})
	assert.Nil(t, a.Journal)

	_, err := a.Pipeline.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = a.Pipeline.Plan(context.Background(), "add a task")
	assert.Error(t, err)
}

func TestNew_ValidatesNeeds(t *testing.T) {
	_, err := New(context.Background(), testConfig(t), Options{Needs: config.Needs{Store: true}})
	var cerr *config.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "store.apiKey", cerr.Key)
}

func TestProcessRecording(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/inbox/memo.wav", []byte("RIFF"), 0o644))
	store := boardtest.NewStore(nil, nil)
	a := newTestApp(t, testConfig(t), Options{
		Fs:          fs,
		Store:       store,
		Engine:      replyWith(`[{"kind":"create","task":"Book flights"}]`),
		Transcriber: fixedTranscriber("add book flights"),
	})

	report, err := a.ProcessRecording(context.Background(), fs, "/inbox/memo.wav")
	require.NoError(t, err)
	assert.Equal(t, "audio:memo.wav", report.Source)
	assert.Equal(t, "add book flights", report.Transcript)
	assert.Len(t, store.Named("Book flights"), 1)

	_, err = a.ProcessRecording(context.Background(), fs, "/inbox/notes.txt")
	assert.Error(t, err)
}

func TestProcessRecording_AllFailed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/memo.m4a", []byte("data"), 0o644))
	a := newTestApp(t, testConfig(t), Options{
		Fs:          fs,
		Store:       boardtest.NewStore(nil, nil),
		Engine:      replyWith(`[{"kind":"delete","task":"Missing task"}]`),
		Transcriber: fixedTranscriber("delete missing task"),
	})

	report, err := a.ProcessRecording(context.Background(), fs, "/memo.m4a")
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Failed())
}
