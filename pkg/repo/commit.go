package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// commitMessagePath is the scratch file handed to the MessageSource.
func (r *Repo) commitMessagePath() string {
	return filepath.Join(r.SnapDir, "COMMIT_EDITMSG")
}

// Commit publishes the staging ledger as a new commit on the current branch.
//
//  1. Validate: the ledger must hold at least one record
//  2. Build the tree from the ledger
//  3. Build the commit (message from msgs, parent = current branch tip)
//  4. Point the branch HEAD refers to at the new commit
//  5. Clear the ledger
//
// A failure in steps 2-4 leaves the ledger and the ref untouched so the
// commit can be retried. Objects written before the failure stay in the
// store unreferenced. The returned error is a *CommitStageError.
func (r *Repo) Commit(msgs MessageSource) (object.Hash, error) {
	return r.CommitWithSigner(msgs, nil)
}

// CommitWithSigner is Commit, signing the commit when signer is non-nil.
func (r *Repo) CommitWithSigner(msgs MessageSource, signer CommitSigner) (object.Hash, error) {
	var commitHash object.Hash
	err := r.withLock(func() error {
		h, err := r.runCommit(msgs, signer)
		commitHash = h
		return err
	})
	if err != nil {
		var stageErr *CommitStageError
		if !errors.As(err, &stageErr) {
			// Lock acquisition failed before the pipeline started.
			err = &CommitStageError{Stage: StageValidating, Err: err}
		}
		return "", err
	}
	return commitHash, nil
}

func (r *Repo) runCommit(msgs MessageSource, signer CommitSigner) (object.Hash, error) {
	fail := func(stage CommitStage, err error) (object.Hash, error) {
		r.Logger.Debug("commit aborted", zap.String("stage", string(stage)), zap.Error(err))
		return "", &CommitStageError{Stage: stage, Err: err}
	}
	enter := func(stage CommitStage) {
		r.Logger.Debug("commit stage", zap.String("stage", string(stage)))
	}

	enter(StageValidating)
	entries, err := r.Index.ReadAll()
	if err != nil {
		return fail(StageValidating, err)
	}
	if len(entries) == 0 {
		return fail(StageValidating, ErrNothingToCommit)
	}
	ref, err := r.HeadRef()
	if err != nil {
		return fail(StageValidating, err)
	}
	parent, err := readRefHash(filepath.Join(r.SnapDir, filepath.FromSlash(ref)))
	if err != nil {
		return fail(StageValidating, fmt.Errorf("read %s: %w", ref, err))
	}

	enter(StageBuildingTree)
	treeHash, err := r.BuildTree(entries)
	if err != nil {
		return fail(StageBuildingTree, err)
	}

	enter(StageBuildingCommit)
	var parents []object.Hash
	if parent != "" {
		parents = append(parents, parent)
	}
	commitHash, err := r.BuildCommit(treeHash, parents, msgs, signer)
	if err != nil {
		return fail(StageBuildingCommit, err)
	}

	enter(StageUpdatingRef)
	if _, err := r.UpdateHeadRef(commitHash, "commit", parent); err != nil {
		var reflogErr *RefUpdateReflogError
		if !errors.As(err, &reflogErr) {
			return fail(StageUpdatingRef, err)
		}
		// The ref moved; only its history line is missing.
		r.Logger.Warn("reflog append failed", zap.Error(err))
	}

	enter(StageClearingIndex)
	if err := r.Index.Clear(); err != nil {
		return fail(StageClearingIndex, err)
	}

	r.Logger.Debug("commit done",
		zap.String("commit", string(commitHash)),
		zap.String("tree", string(treeHash)),
		zap.Int("staged", len(entries)),
	)
	return commitHash, nil
}

// BuildCommit writes the message template to .snap/COMMIT_EDITMSG, lets
// msgs fill it in, reads it back verbatim and stores a commit for tree.
// Empty and template-only messages are accepted.
func (r *Repo) BuildCommit(tree object.Hash, parents []object.Hash, msgs MessageSource, signer CommitSigner) (object.Hash, error) {
	if msgs == nil {
		return "", fmt.Errorf("build commit: no message source")
	}

	msgPath := r.commitMessagePath()
	if err := os.WriteFile(msgPath, []byte(CommitMessageTemplate), 0o644); err != nil {
		return "", fmt.Errorf("build commit: write template: %w", err)
	}
	if err := msgs.AcquireMessage(msgPath); err != nil {
		return "", fmt.Errorf("build commit: %w", err)
	}
	message, err := os.ReadFile(msgPath)
	if err != nil {
		return "", fmt.Errorf("build commit: read message: %w", err)
	}

	commitObj := &object.CommitObj{
		TreeHash:  tree,
		Parents:   parents,
		Author:    r.Config.Author(),
		Timestamp: time.Now().Unix(),
		Message:   string(message),
	}
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("build commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	h, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("build commit: write commit: %w", err)
	}
	return h, nil
}

// LogEntry pairs a commit with its hash.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits newest first. limit <= 0
// means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrObjectNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return entries, nil
}
