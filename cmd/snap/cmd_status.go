package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the branch and the staged files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			branch, err := r.CurrentBranch()
			if err != nil {
				return err
			}
			if branch == "" {
				branch = "(detached)"
			}

			if _, err := r.ResolveRef("HEAD"); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			files, err := r.StagedFiles()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "\nnothing staged")
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintln(out, "\nstaged:")
			for _, f := range files {
				fmt.Fprintf(out, "  %s %s %s\n", green("+"), yellow(f.BlobHash.Short()), f.Path)
			}
			return nil
		},
	}
}
