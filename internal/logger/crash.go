// Package logger sets up structured logging and writes crash reports when the
// process panics.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	// CrashLogDir is the crash report directory under the data directory.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is how many crash reports are kept.
	MaxCrashLogs = 10
)

type crashContext struct {
	mu         sync.RWMutex
	fs         afero.Fs
	stderr     io.Writer
	exit       func(int)
	dataDir    string
	version    string
	command    string
	lastInput  string
	lastPrompt string
}

var crash = newCrashContext()

func newCrashContext() *crashContext {
	return &crashContext{fs: afero.NewOsFs(), stderr: os.Stderr, exit: os.Exit}
}

// SetDataDir sets where crash reports are written.
func SetDataDir(dir string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.dataDir = dir
}

// SetVersion records the build version in crash reports.
func SetVersion(version string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.version = version
}

// SetCommand records the command being run.
func SetCommand(cmd string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.command = cmd
}

// SetLastInput records the transcript being processed.
func SetLastInput(input string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.lastInput = truncate(strings.TrimSpace(input), 500)
}

// SetLastPrompt records the last prompt sent to the interpretation engine.
func SetLastPrompt(prompt string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.lastPrompt = truncate(prompt, 2000)
}

func truncate(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashReport is the content of one crash log.
type CrashReport struct {
	Timestamp  time.Time
	Version    string
	Command    string
	PanicValue string
	StackTrace string
	LastInput  string
	LastPrompt string
	GoVersion  string
	OS         string
	Arch       string
}

// HandlePanic recovers a panic, writes a crash report and exits with status 1.
// Use as: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report := newCrashReport(r)

	crash.mu.RLock()
	stderr, exit := crash.stderr, crash.exit
	crash.mu.RUnlock()

	path, err := WriteCrashReport(report)
	if err != nil {
		fmt.Fprintf(stderr, "\n[CRASH] could not write crash log: %v\n", err)
		fmt.Fprintf(stderr, "[CRASH] panic: %v\n%s\n", r, report.StackTrace)
	} else {
		fmt.Fprintf(stderr, "\nvoiceboard crashed unexpectedly.\n")
		fmt.Fprintf(stderr, "A crash log was saved to:\n  %s\n\n", path)
	}
	exit(1)
}

func newCrashReport(panicValue any) CrashReport {
	crash.mu.RLock()
	defer crash.mu.RUnlock()

	return CrashReport{
		Timestamp:  time.Now(),
		Version:    crash.version,
		Command:    crash.command,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		LastInput:  crash.lastInput,
		LastPrompt: crash.lastPrompt,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

// WriteCrashReport writes report to the crash directory, pruning old reports,
// and returns the file path.
func WriteCrashReport(report CrashReport) (string, error) {
	fs, dir := crashDir()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	if err := pruneCrashLogs(fs, dir, MaxCrashLogs-1); err != nil {
		crash.mu.RLock()
		fmt.Fprintf(crash.stderr, "[WARN] failed to prune crash logs: %v\n", err)
		crash.mu.RUnlock()
	}

	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", report.Timestamp.Format("20060102_150405")))
	if err := afero.WriteFile(fs, path, []byte(report.Format()), 0o644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	return path, nil
}

func crashDir() (afero.Fs, string) {
	crash.mu.RLock()
	defer crash.mu.RUnlock()
	base := crash.dataDir
	if base == "" {
		base = ".voiceboard"
	}
	return crash.fs, filepath.Join(base, CrashLogDir)
}

// Format renders the report as plain text.
func (r CrashReport) Format() string {
	rule := strings.Repeat("-", 80)
	var sb strings.Builder

	sb.WriteString("VOICEBOARD CRASH LOG\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&sb, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", r.Version)
	fmt.Fprintf(&sb, "Command:   %s\n", r.Command)
	fmt.Fprintf(&sb, "Go:        %s\n", r.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch:   %s/%s\n", r.OS, r.Arch)

	section := func(title, body string) {
		if body == "" {
			return
		}
		fmt.Fprintf(&sb, "\n%s\n%s\n%s\n%s\n", rule, title, rule, strings.TrimRight(body, "\n"))
	}
	section("PANIC", r.PanicValue)
	section("STACK TRACE", r.StackTrace)
	section("LAST TRANSCRIPT", r.LastInput)
	section("LAST PROMPT", r.LastPrompt)
	return sb.String()
}

// pruneCrashLogs keeps the newest keep reports.
func pruneCrashLogs(fs afero.Fs, dir string, keep int) error {
	logs, err := listCrashLogs(fs, dir)
	if err != nil || len(logs) <= keep {
		return err
	}
	for _, path := range logs[:len(logs)-keep] {
		if err := fs.Remove(path); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func listCrashLogs(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	// Names embed the timestamp, so lexical order is oldest first.
	sort.Strings(logs)
	return logs, nil
}

// ListCrashLogs returns the saved crash reports, oldest first.
func ListCrashLogs() ([]string, error) {
	fs, dir := crashDir()
	return listCrashLogs(fs, dir)
}
