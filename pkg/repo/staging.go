package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/index"
	"github.com/odvcencio/snap/pkg/object"
)

// Add stages the given paths. Each path is resolved relative to the repo
// root. Directories are walked recursively, honoring .snapignore. For each
// file the content is written as a blob and one record is appended to the
// staging ledger. Staging a path that is already staged appends again.
//
// A path that does not exist fails with ErrPathNotFound. Files staged
// before the failing path stay staged.
func (r *Repo) Add(paths []string) error {
	return r.withLock(func() error {
		ignore := NewIgnoreChecker(r.RootDir)
		for _, p := range paths {
			if err := r.addPath(p, ignore); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		}
		return nil
	})
}

func (r *Repo) addPath(p string, ignore *IgnoreChecker) error {
	relPath, err := r.repoRelPath(p)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", p, err)
	}

	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q: %w", p, ErrPathNotFound)
		}
		return fmt.Errorf("stat %q: %w", relPath, err)
	}

	if !info.IsDir() {
		return r.stageFile(relPath, absPath)
	}

	return filepath.WalkDir(absPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ignore.IsIgnored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return r.stageFile(rel, path)
	})
}

func (r *Repo) stageFile(relPath, absPath string) error {
	if relPath == "." || relPath == DirName || strings.HasPrefix(relPath, DirName+"/") {
		return fmt.Errorf("%q: cannot stage repository metadata", relPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %q: %w", relPath, err)
	}

	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", relPath, err)
	}

	if err := r.Index.Append(index.Entry{Hash: blobHash, Path: relPath}); err != nil {
		return err
	}

	r.Logger.Debug("staged",
		zap.String("path", relPath),
		zap.String("blob", string(blobHash)),
	)
	return nil
}

// Staged returns the staging ledger in append order.
func (r *Repo) Staged() ([]index.Entry, error) {
	return r.Index.ReadAll()
}

// StagedFiles returns the files the next commit would contain: the ledger
// folded through BuildTreeNode, ordered by path.
func (r *Repo) StagedFiles() ([]TreeFileEntry, error) {
	entries, err := r.Index.ReadAll()
	if err != nil {
		return nil, err
	}
	root, err := BuildTreeNode(entries)
	if err != nil {
		return nil, err
	}
	return root.Files(), nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a
// forward-slash path relative to the repository root. A relative path that
// does not land inside the repository from the CWD is taken as already
// repo-relative; an absolute path outside the repository is rejected.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, filepath.Clean(p))
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		if isOutside(rel) {
			return "", fmt.Errorf("%q is outside repository at %q", p, r.RootDir)
		}
		return filepath.ToSlash(rel), nil
	}

	cleaned := filepath.Clean(p)
	cwd, err := os.Getwd()
	if err == nil {
		rel, err := filepath.Rel(r.RootDir, filepath.Join(cwd, cleaned))
		if err == nil && !isOutside(rel) {
			return filepath.ToSlash(rel), nil
		}
	}
	if isOutside(cleaned) {
		return "", fmt.Errorf("%q is outside repository at %q", p, r.RootDir)
	}
	return filepath.ToSlash(cleaned), nil
}

func isOutside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
