package commit

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/cuemby/ridgeline/pkg/objectstore"
	"github.com/cuemby/ridgeline/pkg/types"
)

// entryBlob is the envelope written to objectstore for every non-directory
// entry. It carries the logical entry type alongside the raw bytes so a
// bare blob digest is enough to reconstruct an Entry on read.
type entryBlob struct {
	Type    types.EntryType `json:"type"`
	Content json.RawMessage `json:"content"`
}

// canonicalizeJSON re-marshals b through a generic interface{} so that map
// keys sort deterministically and whitespace is stripped, giving two
// semantically identical documents the same bytes (and digest).
func canonicalizeJSON(b []byte) (json.RawMessage, error) {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// materialize walks the nested tree rooted at digest and returns every leaf
// entry keyed by absolute path. A zero digest (no commits yet) yields an
// empty, valid tree.
func materialize(store *objectstore.Store, digest objectstore.Digest) (map[string]types.Entry, error) {
	entries := make(map[string]types.Entry)
	if digest.IsZero() {
		return entries, nil
	}
	if err := walkTree(store, digest, "", entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func walkTree(store *objectstore.Store, digest objectstore.Digest, prefix string, out map[string]types.Entry) error {
	tree, err := store.GetTree(digest)
	if err != nil {
		return err
	}
	for _, child := range tree {
		childPath := prefix + "/" + child.Name
		switch child.Type {
		case objectstore.TreeEntryTree:
			if err := walkTree(store, child.Digest, childPath, out); err != nil {
				return err
			}
		case objectstore.TreeEntryDirectory:
			out[childPath+"/"] = types.Entry{Path: childPath + "/", Type: types.EntryDirectory}
		default:
			raw, err := store.GetBlob(child.Digest)
			if err != nil {
				return err
			}
			var eb entryBlob
			if err := json.Unmarshal(raw, &eb); err != nil {
				return err
			}
			out[childPath] = types.Entry{Path: childPath, Type: eb.Type, Content: eb.Content}
		}
	}
	return nil
}

// treeNode is an in-memory scratch directory used while rebuilding a nested
// tree from a flat set of entries.
type treeNode struct {
	children map[string]*treeNode
	leaf     *types.Entry // nil unless this node itself is a leaf entry
}

func newTreeNode() *treeNode { return &treeNode{children: make(map[string]*treeNode)} }

// buildTree rebuilds the nested object-store tree for entries and returns
// the new root digest, writing every blob and tree level that is not
// already present.
func buildTree(store *objectstore.Store, entries map[string]types.Entry) (objectstore.Digest, error) {
	root := newTreeNode()
	for path, entry := range entries {
		parts := segments(strings.TrimSuffix(path, "/"))
		node := root
		for i, part := range parts {
			last := i == len(parts)-1
			child, ok := node.children[part]
			if !ok {
				child = newTreeNode()
				node.children[part] = child
			}
			if last {
				e := entry
				child.leaf = &e
			}
			node = child
		}
	}
	return writeTreeNode(store, root)
}

func writeTreeNode(store *objectstore.Store, node *treeNode) (objectstore.Digest, error) {
	var tree objectstore.Tree
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := node.children[name]
		if child.leaf != nil && child.leaf.Type == types.EntryDirectory {
			tree = append(tree, objectstore.TreeEntry{Name: name, Type: objectstore.TreeEntryDirectory})
			continue
		}
		if child.leaf != nil {
			data, err := json.Marshal(entryBlob{Type: child.leaf.Type, Content: child.leaf.Content})
			if err != nil {
				return objectstore.Digest{}, err
			}
			digest, err := store.PutBlob(data)
			if err != nil {
				return objectstore.Digest{}, err
			}
			tree = append(tree, objectstore.TreeEntry{Name: name, Type: objectstore.TreeEntryBlob, Digest: digest})
			continue
		}
		digest, err := writeTreeNode(store, child)
		if err != nil {
			return objectstore.Digest{}, err
		}
		tree = append(tree, objectstore.TreeEntry{Name: name, Type: objectstore.TreeEntryTree, Digest: digest})
	}
	return store.PutTree(tree)
}
