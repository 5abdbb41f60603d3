package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var message string
	var sign bool
	var signingKey string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged files as a new commit",
		Long: "Record the staged files as a new commit. Without -m the message is\n" +
			"edited in [core] editor, $VISUAL, $EDITOR or vi, and saved verbatim.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = r.Logger.Sync() }()

			var msgs repo.MessageSource
			if cmd.Flags().Changed("message") {
				msgs = repo.StaticMessage(message)
			} else {
				msgs = repo.NewEditor(r.Config.Core.Editor)
			}

			var signer repo.CommitSigner
			if sign || signingKey != "" || r.Config.Commit.Sign {
				key := signingKey
				if key == "" {
					key = r.Config.Commit.SigningKey
				}
				s, keyPath, err := newSSHCommitSigner(key)
				if err != nil {
					return fmt.Errorf("commit signing: %w", err)
				}
				r.Logger.Debug("signing commit", zap.String("key", keyPath))
				signer = s
			}

			h, err := r.CommitWithSigner(msgs, signer)
			if err != nil {
				return err
			}

			branch := "HEAD"
			if name, err := r.CurrentBranch(); err == nil && name != "" {
				branch = name
			}
			summary := ""
			if c, err := r.Store.ReadCommit(h); err == nil {
				summary = firstLine(c.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, h.Short(), summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message (skips the editor)")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "SSH private key path (default: [commit] signingkey or ~/.ssh/id_*)")

	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
