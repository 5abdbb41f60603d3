package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/object"
)

// Head reads .snap/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/master"). Otherwise it returns the raw content.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.SnapDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\r\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimSpace(strings.TrimPrefix(content, "ref: ")), nil
	}
	return content, nil
}

// HeadRef returns the ref path HEAD points at. A HEAD that is not of the
// form "ref: refs/..." yields ErrRefResolutionFailed.
func (r *Repo) HeadRef() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.SnapDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefResolutionFailed, err)
	}
	content := strings.TrimRight(string(data), "\r\n")
	target, ok := strings.CutPrefix(content, "ref: ")
	target = strings.TrimSpace(target)
	if !ok || !validRefName(target) {
		return "", fmt.Errorf("%w: HEAD is %q", ErrRefResolutionFailed, content)
	}
	return target, nil
}

// CurrentBranch returns the branch name when HEAD is a symbolic ref to
// refs/heads/<name>, and "" otherwise.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}

	const prefix = "refs/heads/"
	if strings.HasPrefix(head, prefix) {
		return strings.TrimPrefix(head, prefix), nil
	}
	return "", nil
}

// validRefName accepts "refs/..." paths that stay inside the refs tree.
func validRefName(name string) bool {
	if !strings.HasPrefix(name, "refs/") || strings.HasSuffix(name, "/") {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasSuffix(seg, ".lock") {
			return false
		}
	}
	return true
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD and resolve the target ref.
//  2. If name starts with "refs/", read .snap/<name>.
//  3. Otherwise, try "refs/heads/<name>".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.HeadRef()
		if err != nil {
			return "", err
		}
		return r.ResolveRef(head)
	}

	refName := name
	if !strings.HasPrefix(name, "refs/") {
		refName = "refs/heads/" + name
	}
	if !validRefName(refName) {
		return "", fmt.Errorf("resolve ref %q: invalid ref name", name)
	}

	data, err := os.ReadFile(filepath.Join(r.SnapDir, filepath.FromSlash(refName)))
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// UpdateHeadRef points the branch HEAD refers to at h, overwriting the
// branch ref file. If expectedOld is given, the update only succeeds when the
// current value matches it ("" meaning the ref does not exist yet).
func (r *Repo) UpdateHeadRef(h object.Hash, reason string, expectedOld ...object.Hash) (string, error) {
	ref, err := r.HeadRef()
	if err != nil {
		return "", err
	}
	if err := r.updateRef(ref, h, reason, expectedOld...); err != nil {
		return "", err
	}
	return ref, nil
}

// UpdateRef writes a hash to the named ref file under .snap/. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.updateRef(name, h, "update")
}

// UpdateRefCAS is UpdateRef guarded by an expected old value.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	return r.updateRef(name, h, "update", expectedOld...)
}

// updateRef uses lockfile + rename semantics. Reflog append happens after
// the ref rename; if it fails, the ref update remains committed and a
// RefUpdateReflogError is returned.
func (r *Repo) updateRef(name string, h object.Hash, reason string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	if !validRefName(name) {
		return fmt.Errorf("update ref %q: invalid ref name", name)
	}
	if !h.Valid() {
		return fmt.Errorf("update ref %q: invalid hash %q", name, h)
	}

	refPath := filepath.Join(r.SnapDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name,
			ErrRefCASMismatch,
			expectedOld[0],
			oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	r.Logger.Info("ref updated",
		zap.String("ref", name),
		zap.String("old", string(oldHash)),
		zap.String("new", string(h)),
	)

	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{
			Ref:     name,
			OldHash: oldHash,
			NewHash: h,
			Err:     err,
		}
	}
	return nil
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// ListRefs lists references under .snap/refs.
// Names are returned relative to refs root, e.g. "heads/master", "tags/v1".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.SnapDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}
