package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultBranch is the branch HEAD points at after Init.
const DefaultBranch = "master"

// Init creates a new snap repository at path. It creates the .snap/
// directory structure: objects/{info,pack}, refs/{heads,tags}, HEAD and a
// default config.toml. No branch ref file exists until the first commit.
// Returns ErrAlreadyInitialized if a .snap/ directory already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	snapDir := filepath.Join(path, DirName)

	if _, err := os.Stat(snapDir); err == nil {
		return nil, fmt.Errorf("init: %w at %s", ErrAlreadyInitialized, snapDir)
	}

	dirs := []string{
		filepath.Join(snapDir, "objects", "info"),
		filepath.Join(snapDir, "objects", "pack"),
		filepath.Join(snapDir, "refs", "heads"),
		filepath.Join(snapDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(snapDir, "HEAD")
	head := "ref: refs/heads/" + DefaultBranch + "\n"
	if err := os.WriteFile(headPath, []byte(head), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	cfg := DefaultConfig()
	if err := writeConfig(snapDir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r := newRepo(path, cfg, opts)
	r.Logger.Info("initialized repository", zap.String("dir", snapDir))
	return r, nil
}

// Open searches upward from path for a .snap/ directory and opens the
// repository. A directory only counts as a repository if its HEAD and
// objects/ exist; otherwise ErrNotInitialized is returned.
func Open(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		snapDir := filepath.Join(cur, DirName)
		if isRepoDir(snapDir) {
			cfg, err := loadConfig(snapDir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return newRepo(cur, cfg, opts), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: %w", ErrNotInitialized)
		}
		cur = parent
	}
}

func isRepoDir(snapDir string) bool {
	info, err := os.Stat(snapDir)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(snapDir, "HEAD")); err != nil {
		return false
	}
	info, err = os.Stat(filepath.Join(snapDir, "objects"))
	return err == nil && info.IsDir()
}
