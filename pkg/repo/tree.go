package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/index"
	"github.com/odvcencio/snap/pkg/object"
)

// TreeNode is an in-memory directory level built from the staging ledger.
// A node is either a blob leaf (Children == nil, Hash set) or a directory
// (Children != nil).
type TreeNode struct {
	Hash     object.Hash
	Children map[string]*TreeNode
}

// NewDirNode returns an empty directory node.
func NewDirNode() *TreeNode {
	return &TreeNode{Children: make(map[string]*TreeNode)}
}

// IsDir reports whether n is a directory node.
func (n *TreeNode) IsDir() bool {
	return n.Children != nil
}

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
}

// BuildTreeNode folds the flat ledger into nested directory nodes.
//
// Entries are applied in ledger order and a later entry replaces whatever an
// earlier one left at the same name: restaging a path keeps the newest blob,
// and a file staged where a directory used to be (or the reverse) replaces
// the old node.
func BuildTreeNode(entries []index.Entry) (*TreeNode, error) {
	root := NewDirNode()
	for _, e := range entries {
		segments, err := splitStagedPath(e.Path)
		if err != nil {
			return nil, err
		}

		cur := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := cur.Children[seg]
			if !ok || !child.IsDir() {
				child = NewDirNode()
				cur.Children[seg] = child
			}
			cur = child
		}
		cur.Children[segments[len(segments)-1]] = &TreeNode{Hash: e.Hash}
	}
	return root, nil
}

func splitStagedPath(p string) ([]string, error) {
	segments := strings.Split(p, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStagedPath, p)
		}
	}
	return segments, nil
}

// BuildTree converts the flat staging entries into a hierarchical tree,
// writing every directory level as a TreeObj and returning the root hash.
// Tree hashes depend only on content, so the same staged set always yields
// the same root.
func (r *Repo) BuildTree(entries []index.Entry) (object.Hash, error) {
	root, err := BuildTreeNode(entries)
	if err != nil {
		return "", fmt.Errorf("build tree: %w", err)
	}
	return r.WriteTreeNode(root, "")
}

// WriteTreeNode writes n and, bottom-up, every directory below it. prefix
// is the node's path, used only in errors and logs.
func (r *Repo) WriteTreeNode(n *TreeNode, prefix string) (object.Hash, error) {
	if !n.IsDir() {
		return "", fmt.Errorf("write tree %q: not a directory", prefix)
	}

	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		child := n.Children[name]
		if !child.IsDir() {
			entries = append(entries, object.TreeEntry{Name: name, Hash: child.Hash})
			continue
		}

		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := r.WriteTreeNode(child, childPrefix)
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Name: name, IsDir: true, Hash: subHash})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	r.Logger.Debug("tree written",
		zap.String("prefix", prefix),
		zap.String("hash", string(h)),
		zap.Int("entries", len(entries)),
	)
	return h, nil
}

// Files lists the blob leaves under n with their full slash-separated
// paths, ordered by path.
func (n *TreeNode) Files() []TreeFileEntry {
	var out []TreeFileEntry
	var walk func(node *TreeNode, prefix string)
	walk = func(node *TreeNode, prefix string) {
		names := make([]string, 0, len(node.Children))
		for name := range node.Children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := node.Children[name]
			p := path.Join(prefix, name)
			if child.IsDir() {
				walk(child, p)
				continue
			}
			out = append(out, TreeFileEntry{Path: p, BlobHash: child.Hash})
		}
	}
	if n.IsDir() {
		walk(n, "")
	}
	return out
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes).
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				BlobHash: entry.Hash,
			})
		}
	}
	return result, nil
}
