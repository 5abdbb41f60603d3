package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("%s is a directory, want file", path)
	}
}

func initRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

// writeFile writes content to name inside the repo, creating parents.
func writeFile(t *testing.T, r *Repo, name, content string) {
	t.Helper()
	p := filepath.Join(r.RootDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init(%q): %v", dir, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}

	snapDir := filepath.Join(dir, ".snap")
	if r.SnapDir != snapDir {
		t.Errorf("SnapDir = %q, want %q", r.SnapDir, snapDir)
	}

	assertDir(t, snapDir)
	assertDir(t, filepath.Join(snapDir, "objects", "info"))
	assertDir(t, filepath.Join(snapDir, "objects", "pack"))
	assertDir(t, filepath.Join(snapDir, "refs", "heads"))
	assertDir(t, filepath.Join(snapDir, "refs", "tags"))
	assertFile(t, filepath.Join(snapDir, "config.toml"))

	head, err := os.ReadFile(filepath.Join(snapDir, "HEAD"))
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(head) != "ref: refs/heads/master\n" {
		t.Errorf("HEAD = %q", head)
	}

	// No branch ref exists until the first commit.
	if _, err := os.Stat(filepath.Join(snapDir, "refs", "heads", "master")); !os.IsNotExist(err) {
		t.Errorf("refs/heads/master should not exist yet, stat err=%v", err)
	}

	if r.Store == nil || r.Index == nil || r.Config == nil || r.Logger == nil {
		t.Error("Init returned a partially constructed Repo")
	}
}

func TestInit_ExistingRepo_Error(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	_, err := Init(dir)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestOpen_FindsRepoFromSubdirectory(t *testing.T) {
	r := initRepo(t)
	sub := filepath.Join(r.RootDir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	opened, err := Open(sub)
	if err != nil {
		t.Fatalf("Open(%s): %v", sub, err)
	}
	if opened.RootDir != r.RootDir {
		t.Errorf("RootDir = %q, want %q", opened.RootDir, r.RootDir)
	}
}

func TestOpen_NotInitialized(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open err = %v, want ErrNotInitialized", err)
	}
}

func TestOpen_IncompleteBootstrapIsNotARepo(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".snap"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Open(dir)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open err = %v, want ErrNotInitialized", err)
	}
}

func TestOpen_ReadsConfig(t *testing.T) {
	r := initRepo(t)
	cfg := DefaultConfig()
	cfg.User.Name = "Ada"
	cfg.Core.Compression = 9
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	opened, err := Open(r.RootDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Config.Author() != "Ada" || opened.Config.Core.Compression != 9 {
		t.Errorf("config = %+v", opened.Config)
	}
}

func TestOpen_BadConfigFails(t *testing.T) {
	r := initRepo(t)
	if err := os.WriteFile(filepath.Join(r.SnapDir, "config.toml"), []byte("[user\nname="), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(r.RootDir)
	if err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("Open err = %v, want config error", err)
	}
}
