package policy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPoliciesDir is the policies directory under the data directory.
const DefaultPoliciesDir = "policies"

// PolicyFile is a loaded Rego policy file.
type PolicyFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Loader reads .rego files from a directory tree.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a loader. Use afero.NewMemMapFs() in tests.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{fs: fs, baseDir: baseDir}
}

// LoadAll loads every .rego file under the base directory, sorted by path.
// A missing directory yields no policies.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	paths, err := l.ListFiles()
	if err != nil {
		return nil, err
	}
	policies := make([]*PolicyFile, 0, len(paths))
	for _, path := range paths {
		p, err := l.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load policy %s: %w", path, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// LoadFile reads one policy file.
func (l *Loader) LoadFile(path string) (*PolicyFile, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}

// ListFiles returns the paths of the .rego files under the base directory.
func (l *Loader) ListFiles() ([]string, error) {
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var paths []string
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".rego") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// FileCheck is the compile result for one policy file.
type FileCheck struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// OK reports whether the file compiled.
func (c FileCheck) OK() bool { return c.Err == nil }

// CheckAll compiles each policy file on its own and reports per-file errors.
func (l *Loader) CheckAll() ([]FileCheck, error) {
	policies, err := l.LoadAll()
	if err != nil {
		return nil, err
	}
	checks := make([]FileCheck, 0, len(policies))
	for _, p := range policies {
		checks = append(checks, FileCheck{Path: p.Path, Err: ValidatePolicy(p.Content)})
	}
	return checks, nil
}
