package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/snap/pkg/object"
)

// absentHash stands in for "no previous value" in a reflog line.
var absentHash = object.Hash(strings.Repeat("0", object.HashSize))

// ReflogEntry records one move of a ref. OldHash is "" when the ref was
// created by the move.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

// logs/<ref>, one "<old> <new> <unix> <reason>" line per move.
func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.SnapDir, "logs", filepath.FromSlash(ref))
}

func formatReflogLine(e ReflogEntry) string {
	old := e.OldHash
	if old == "" {
		old = absentHash
	}
	reason := strings.Join(strings.Fields(e.Reason), " ")
	if reason == "" {
		reason = "update"
	}
	return fmt.Sprintf("%s %s %d %s\n", old, e.NewHash, e.Timestamp, reason)
}

func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 4)
	if len(fields) != 4 {
		return ReflogEntry{}, false
	}
	old, cur := object.Hash(fields[0]), object.Hash(fields[1])
	if !old.Valid() || !cur.Valid() {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	if old == absentHash {
		old = ""
	}
	return ReflogEntry{Ref: ref, OldHash: old, NewHash: cur, Timestamp: ts, Reason: fields[3]}, true
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	logPath := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog %s: %w", ref, err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog %s: %w", ref, err)
	}
	line := formatReflogLine(ReflogEntry{
		OldHash:   oldHash,
		NewHash:   newHash,
		Timestamp: time.Now().Unix(),
		Reason:    reason,
	})
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("reflog %s: %w", ref, err)
	}
	return f.Close()
}

// ReadReflog lists moves of ref, newest first, at most limit of them
// (limit <= 0 lists all). "" and "HEAD" select the branch HEAD names; a bare
// name is taken as refs/heads/<name>. Unparseable lines are skipped.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName, err := r.reflogRefName(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.reflogPath(refName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reflog %s: %w", refName, err)
	}

	lines := bytes.Split(data, []byte("\n"))
	var entries []ReflogEntry
	for i := len(lines) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		if e, ok := parseReflogLine(refName, string(lines[i])); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (r *Repo) reflogRefName(ref string) (string, error) {
	switch ref = strings.TrimSpace(ref); {
	case ref == "" || ref == "HEAD":
		return r.HeadRef()
	case !strings.HasPrefix(ref, "refs/"):
		ref = "refs/heads/" + ref
	}
	if !validRefName(ref) {
		return "", fmt.Errorf("read reflog: invalid ref name %q", ref)
	}
	return ref, nil
}
