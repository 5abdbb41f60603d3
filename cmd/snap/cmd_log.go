package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/snap/pkg/object"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int
	var showSignature bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			headHash, err := r.ResolveRef("HEAD")
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintln(out, "no commits yet")
					return nil
				}
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}

			entries, err := r.Log(headHash, limit)
			if err != nil {
				return err
			}

			branchName, _ := r.CurrentBranch()
			yellow := color.New(color.FgYellow).SprintFunc()
			cyan := color.New(color.FgCyan).SprintFunc()

			for _, entry := range entries {
				h := entry.Hash
				c := entry.Commit
				decoration := buildDecoration(h, headHash, branchName)
				if decoration != "" {
					decoration = " " + cyan(decoration)
				}

				if oneline {
					fmt.Fprintf(out, "%s%s %s\n", yellow(h.Short()), decoration, firstLine(c.Message))
					continue
				}

				fmt.Fprintf(out, "%s%s\n", yellow("commit "+string(h)), decoration)
				if showSignature && c.Signature != "" {
					if fp, err := verifyCommitSignature(c); err != nil {
						fmt.Fprintf(out, "Signature: BAD (%v)\n", err)
					} else {
						fmt.Fprintf(out, "Signature: good %s\n", fp)
					}
				}
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	cmd.Flags().BoolVar(&showSignature, "show-signature", false, "verify and show SSH commit signatures")

	return cmd
}

// buildDecoration returns "(HEAD -> <branch>)" for the branch tip and ""
// for every other commit.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}
