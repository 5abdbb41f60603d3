package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/snap/pkg/object"
)

var (
	ErrNotInitialized      = errors.New("not a snap repository (or any parent up to /)")
	ErrAlreadyInitialized  = errors.New("repository already exists")
	ErrPathNotFound        = errors.New("path not found")
	ErrNothingToCommit     = errors.New("nothing to commit")
	ErrRefResolutionFailed = errors.New("cannot resolve HEAD to a branch ref")
	ErrEditorFailed        = errors.New("editor failed")
	ErrInvalidStagedPath   = errors.New("invalid staged path")
	ErrLocked              = errors.New("repository is locked by another process")
	ErrRefCASMismatch      = errors.New("ref compare-and-swap mismatch")

	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

// CommitStage names one step of the commit pipeline.
type CommitStage string

const (
	StageValidating     CommitStage = "validating"
	StageBuildingTree   CommitStage = "building-tree"
	StageBuildingCommit CommitStage = "building-commit"
	StageUpdatingRef    CommitStage = "updating-ref"
	StageClearingIndex  CommitStage = "clearing-index"
)

// CommitStageError reports the pipeline stage a commit aborted in.
type CommitStageError struct {
	Stage CommitStage
	Err   error
}

func (e *CommitStageError) Error() string {
	return fmt.Sprintf("commit: %s: %v", e.Stage, e.Err)
}

func (e *CommitStageError) Unwrap() error {
	return e.Err
}
