package eerie

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	toml "github.com/pelletier/go-toml/v2"
)

// ProjectFile is the name of the optional project configuration file.
const ProjectFile = "eerie.toml"

// ProjectConfig holds convention-based configuration for a directory of documents.
type ProjectConfig struct {
	BinDir   string    `toml:"bin"`
	Setup    string    `toml:"setup"`
	Teardown string    `toml:"teardown"`
	Pattern  string    `toml:"pattern"`
	Test     TestHooks `toml:"test"`
	dir      string    // resolved absolute base directory
}

// TestHooks holds per-document setup/teardown script paths.
type TestHooks struct {
	Setup    string `toml:"setup"`
	Teardown string `toml:"teardown"`
}

// LoadProjectConfig loads the configuration of the document directory dir.
// Values from eerie.toml take precedence; bin/, setup.sh and teardown.sh are
// picked up by convention when the file does not name them. Per-document
// hooks are never auto-detected. All paths in the result are absolute.
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir: %w", err)
	}

	var file ProjectConfig
	data, err := os.ReadFile(filepath.Join(abs, ProjectFile))
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ProjectFile, err)
		}
		if err := file.checkPaths(abs); err != nil {
			return nil, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", ProjectFile, err)
	}

	return &ProjectConfig{
		BinDir:   pick(abs, file.BinDir, "bin", isDir),
		Setup:    pick(abs, file.Setup, "setup.sh", isFile),
		Teardown: pick(abs, file.Teardown, "teardown.sh", isFile),
		Pattern:  file.Pattern,
		Test: TestHooks{
			Setup:    pick(abs, file.Test.Setup, "", nil),
			Teardown: pick(abs, file.Test.Teardown, "", nil),
		},
		dir: abs,
	}, nil
}

// pick returns the configured path joined to base, or the conventional
// path if it passes exists.
func pick(base, configured, convention string, exists func(string) bool) string {
	if configured != "" {
		return filepath.Join(base, configured)
	}
	if exists == nil {
		return ""
	}
	if candidate := filepath.Join(base, convention); exists(candidate) {
		return candidate
	}
	return ""
}

// checkPaths verifies that every path named in the file exists.
func (cfg *ProjectConfig) checkPaths(base string) error {
	named := []struct {
		path string
		what string
	}{
		{cfg.BinDir, "bin directory"},
		{cfg.Setup, "setup script"},
		{cfg.Teardown, "teardown script"},
		{cfg.Test.Setup, "test setup script"},
		{cfg.Test.Teardown, "test teardown script"},
	}
	for _, n := range named {
		if n.path == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(base, n.path)); err != nil {
			return fmt.Errorf("%s: %s %q not found: %w", ProjectFile, n.what, n.path, err)
		}
	}
	return nil
}

// prepareBinDir returns the directories to prepend to PATH: a temporary
// directory of extension-less wrappers for bin/*.sh, then bin/ itself.
// The returned cleanup removes the wrappers.
func (cfg *ProjectConfig) prepareBinDir() (pathDirs []string, cleanup func(), err error) {
	cleanup = func() {}
	if cfg.BinDir == "" {
		return nil, cleanup, nil
	}

	entries, err := os.ReadDir(cfg.BinDir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("read bin dir: %w", err)
	}

	wrappers, err := os.MkdirTemp("", "eerie-bin-*")
	if err != nil {
		return nil, cleanup, fmt.Errorf("create wrapper dir: %w", err)
	}
	cleanup = func() { os.RemoveAll(wrappers) }

	for _, entry := range entries {
		name, ok := trimSuffix(entry.Name(), ".sh")
		if entry.IsDir() || !ok || name == "" {
			continue
		}
		script := filepath.Join(cfg.BinDir, entry.Name())
		wrapper := fmt.Sprintf("#!/bin/sh\nexec /bin/sh %q \"$@\"\n", script)
		if err := os.WriteFile(filepath.Join(wrappers, name), []byte(wrapper), 0o755); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("write wrapper %s: %w", name, err)
		}
	}

	return []string{wrappers, cfg.BinDir}, cleanup, nil
}

// start applies the project to p: bin/ on PATH, pattern and per-document
// hooks. It then runs the global setup script. The returned stop runs the
// global teardown and removes temporary files.
func (cfg *ProjectConfig) start(p *Params) (stop func(), err error) {
	binDirs, removeBin, err := cfg.prepareBinDir()
	if err != nil {
		return func() {}, fmt.Errorf("prepare bin dir: %w", err)
	}

	userSetup := p.Setup
	p.Setup = func(env *Env) error {
		if userSetup != nil {
			if err := userSetup(env); err != nil {
				return err
			}
		}
		if len(binDirs) > 0 {
			path := strings.Join(binDirs, string(os.PathListSeparator))
			if cur := env.Getenv("PATH"); cur != "" {
				path += string(os.PathListSeparator) + cur
			}
			env.Setenv("PATH", path)
		}
		return nil
	}
	if p.Pattern == "" {
		p.Pattern = cfg.Pattern
	}
	if cfg.Test.Setup != "" {
		p.TestSetup = cfg.Test.Setup
	}
	if cfg.Test.Teardown != "" {
		p.TestTeardown = cfg.Test.Teardown
	}

	if cfg.Setup != "" {
		if err := runGlobalScript(cfg.dir, cfg.Setup); err != nil {
			removeBin()
			return func() {}, fmt.Errorf("global setup failed: %w", err)
		}
	}

	return func() {
		if cfg.Teardown != "" {
			if err := runGlobalScript(cfg.dir, cfg.Teardown); err != nil {
				log.Printf("warning: global teardown failed: %v", err)
			}
		}
		removeBin()
	}, nil
}

// ---- Project-aware run functions

// RunWithProject runs the documents in p.Dir like Run, within the project
// described by LoadProjectConfig(p.Dir).
func RunWithProject(t *testing.T, p Params) {
	cfg, err := LoadProjectConfig(p.Dir)
	if err != nil {
		t.Fatal(err)
	}
	stop, err := cfg.start(&p)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	Run(t, p)
}

// RunStandaloneWithProject is the standalone equivalent of RunWithProject.
// It returns an error if the project cannot be set up or a document fails.
func RunStandaloneWithProject(t TestingT, p Params) error {
	return standaloneWithProject(t, p, func(p Params) { RunStandalone(t, p) })
}

// RunFilesStandaloneWithProject runs specific documents with project structure support.
func RunFilesStandaloneWithProject(t TestingT, p Params, filenames ...string) error {
	return standaloneWithProject(t, p, func(p Params) { RunFilesStandalone(t, p, filenames...) })
}

func standaloneWithProject(t TestingT, p Params, run func(Params)) error {
	cfg, err := LoadProjectConfig(p.Dir)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}
	stop, err := cfg.start(&p)
	if err != nil {
		return err
	}
	defer stop()

	run(p)
	if t.Failed() {
		return fmt.Errorf("documents failed")
	}
	return nil
}

// runGlobalScript runs a shell script in the project directory.
func runGlobalScript(dir, script string) error {
	cmd := exec.Command("/bin/sh", script)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", filepath.Base(script), err, output)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
