package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/logging"
	"github.com/odvcencio/snap/pkg/object"
	"github.com/odvcencio/snap/pkg/repo"
)

// logLevelFlag returns --log-level when the command was run under the root.
func logLevelFlag(cmd *cobra.Command) string {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return ""
	}
	return level
}

func newLogger(cmd *cobra.Command, configured string) (*zap.Logger, error) {
	level := logLevelFlag(cmd)
	if level == "" {
		level = configured
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return logger, nil
}

// openRepo opens the repository containing the working directory and
// attaches a logger at the level from --log-level or [log] level.
func openRepo(cmd *cobra.Command) (*repo.Repo, error) {
	r, err := repo.Open(".")
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, r.Config.Log.Level)
	if err != nil {
		return nil, err
	}
	r.UseLogger(logger)
	return r, nil
}

// resolveObject accepts a full object hash, "HEAD", or a ref name.
func resolveObject(r *repo.Repo, name string) (object.Hash, error) {
	if h := object.Hash(name); h.Valid() {
		return h, nil
	}
	h, err := r.ResolveRef(name)
	if err != nil {
		return "", fmt.Errorf("%q is neither an object hash nor a ref: %w", name, err)
	}
	return h, nil
}
