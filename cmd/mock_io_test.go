package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phuslu/log"

	"github.com/eykd/dgrun/internal/config"
	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/family"
	"github.com/eykd/dgrun/internal/store"
)

// fakeCompiler is a dg.Toolchain whose compiles always succeed silently.
type fakeCompiler struct {
	compiles int
}

func (f *fakeCompiler) Compile(_ context.Context, req dg.CompileRequest) (dg.CommandResult, error) {
	f.compiles++
	if err := os.WriteFile(req.Output, []byte("out"), 0o644); err != nil {
		return dg.CommandResult{}, err
	}
	return dg.CommandResult{Argv: []string{"cc", "-o", req.Output}, Exited: true}, nil
}

func (f *fakeCompiler) Execute(_ context.Context, req dg.ExecRequest) (dg.CommandResult, error) {
	return dg.CommandResult{Argv: []string{req.Path}, Exited: true}, nil
}

func (f *fakeCompiler) Demangle(_ context.Context, text string) (string, error) {
	return text, nil
}

// mockSuiteIO is a test double for SuiteIO backed by a temporary srcdir.
type mockSuiteIO struct {
	cfg      *config.Config
	cfgErr   error
	famErr   error
	tool     *fakeCompiler
	caps     dg.Capabilities
	probeErr error
	now      time.Time

	gotConfigPath string
	probes        int
}

// newMockSuiteIO writes files under a fresh srcdir and returns a mock
// configured for it with a history database in another temp dir.
func newMockSuiteIO(t *testing.T, files map[string]string) *mockSuiteIO {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	cfg := config.Default()
	cfg.SrcDir = root
	cfg.Target = "x86_64-pc-linux-gnu"
	cfg.TmpDir = t.TempDir()
	cfg.History = filepath.Join(t.TempDir(), "history.db")
	cfg.Log.Level = "error"
	return &mockSuiteIO{
		cfg:  cfg,
		tool: &fakeCompiler{},
		caps: dg.AllCapabilities(),
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockSuiteIO) LoadConfig(path string) (*config.Config, error) {
	m.gotConfigPath = path
	return m.cfg, m.cfgErr
}

func (m *mockSuiteIO) LoadFamilies(path string) (*family.Registry, error) {
	if m.famErr != nil {
		return nil, m.famErr
	}
	return family.Load(path)
}

func (m *mockSuiteIO) Toolchains(*config.Config) (map[string]dg.Toolchain, error) {
	return map[string]dg.Toolchain{family.LangC: m.tool, family.LangCXX: m.tool}, nil
}

func (m *mockSuiteIO) Probe(context.Context, dg.Toolchain, string, *log.Logger) (dg.Capabilities, error) {
	m.probes++
	return m.caps, m.probeErr
}

func (m *mockSuiteIO) OpenHistory(path string) (History, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (m *mockSuiteIO) Now() time.Time {
	return m.now
}

// srcPath returns the absolute path of a file under the mock srcdir.
func (m *mockSuiteIO) srcPath(name string) string {
	return filepath.Join(m.cfg.SrcDir, filepath.FromSlash(name))
}
