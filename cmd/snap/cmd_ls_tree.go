package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/snap/pkg/object"
	"github.com/odvcencio/snap/pkg/repo"
)

func newLsTreeCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree [-r] <tree-ish>",
		Short: "List the contents of a tree or of a commit's tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}

			treeHash, err := peelToTree(r, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if recursive {
				files, err := r.FlattenTree(treeHash)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(out, "%s %s\t%s\n", object.TypeBlob, f.BlobHash, f.Path)
				}
				return nil
			}

			tree, err := r.Store.ReadTree(treeHash)
			if err != nil {
				return err
			}
			for _, e := range tree.Entries {
				kind := object.TypeBlob
				if e.IsDir {
					kind = object.TypeTree
				}
				fmt.Fprintf(out, "%s %s\t%s\n", kind, e.Hash, e.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees and list files only")
	return cmd
}

// peelToTree resolves name and, when it names a commit, returns its tree.
func peelToTree(r *repo.Repo, name string) (object.Hash, error) {
	h, err := resolveObject(r, name)
	if err != nil {
		return "", err
	}
	objType, _, err := r.Store.Read(h)
	if err != nil {
		return "", err
	}
	switch objType {
	case object.TypeTree:
		return h, nil
	case object.TypeCommit:
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return "", err
		}
		return c.TreeHash, nil
	default:
		return "", fmt.Errorf("%s is a %s, not a tree or commit", h, objType)
	}
}
