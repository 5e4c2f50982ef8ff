// Package snapshot converts a filesystem.Tree to and from its persisted JSON
// form and moves it through a kv.Store.
//
// The document is an object keyed by node ID:
//
//	{
//	  "root": {"id": "root", "name": "root", "type": "folder",
//	           "parentId": null, "children": ["..."],
//	           "createdAt": "2024-05-01T12:00:00Z", "modifiedAt": "..."},
//	  "...":  {"id": "...", "type": "file", "content": "hi", "parentId": "root", ...}
//	}
//
// Unknown fields are ignored when decoding.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/kv"
)

// DefaultKey is the key the snapshot is stored under
const DefaultKey = "prathvios-files"

type record struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Content    *string   `json:"content,omitempty"`
	ParentID   *string   `json:"parentId"`
	Children   *[]string `json:"children,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

func toRecord(n filesystem.FileNode) record {
	r := record{
		ID:         string(n.ID),
		Name:       n.Name,
		Type:       n.Kind.String(),
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
	}
	if n.Parent != "" {
		r.ParentID = util.Pointer(string(n.Parent))
	}
	switch n.Kind {
	case filesystem.File:
		r.Content = util.Pointer(n.Content)
	case filesystem.Folder:
		children := make([]string, len(n.Children))
		for i, c := range n.Children {
			children[i] = string(c)
		}
		r.Children = &children
	}
	return r
}

func fromRecord(key string, r record) (filesystem.FileNode, error) {
	id := r.ID
	if id == "" {
		id = key
	}
	if id != key {
		return filesystem.FileNode{}, fmt.Errorf("record %q carries id %q", key, r.ID)
	}
	kind, err := filesystem.ParseKind(r.Type)
	if err != nil {
		return filesystem.FileNode{}, fmt.Errorf("record %q: %w", key, err)
	}

	n := filesystem.FileNode{
		ID:         filesystem.NodeID(id),
		Name:       r.Name,
		Kind:       kind,
		Parent:     filesystem.NodeID(util.ValueOr(r.ParentID, "")),
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
	// Files may carry an empty children list and folders no list at all in
	// older documents; normalize both. A move within the same folder could
	// also list a child twice, so only the first entry is kept.
	if kind == filesystem.File {
		n.Content = util.ValueOr(r.Content, "")
	} else {
		children := util.ValueOr(r.Children, nil)
		n.Children = make([]filesystem.NodeID, 0, len(children))
		seen := make(map[string]struct{}, len(children))
		for _, c := range children {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			n.Children = append(n.Children, filesystem.NodeID(c))
		}
	}
	return n, nil
}

// Encode serializes every node. Output is deterministic for a given node set.
func Encode(nodes []filesystem.FileNode) ([]byte, error) {
	doc := make(map[string]record, len(nodes))
	for _, n := range nodes {
		doc[string(n.ID)] = toRecord(n)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot document. It does not check tree invariants;
// pass the result to [filesystem.Restore] for that.
func Decode(data []byte) ([]filesystem.FileNode, error) {
	var doc map[string]record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	nodes := make([]filesystem.FileNode, 0, len(doc))
	for key, r := range doc {
		n, err := fromRecord(key, r)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Load reads and restores the tree stored under key. found is false when the
// store holds no snapshot; an unreadable or inconsistent snapshot is an error.
func Load(ctx context.Context, store kv.Store, key string, opts ...filesystem.TreeOption) (tree *filesystem.Tree, found bool, err error) {
	logger := util.GetLogger("snapshot.Load")

	data, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		logger.Debug().Str("key", key).Msg("No snapshot stored")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %q: %w", key, err)
	}

	nodes, err := Decode(data)
	if err != nil {
		return nil, true, err
	}
	tree, err = filesystem.Restore(nodes, opts...)
	if err != nil {
		return nil, true, err
	}

	logger.Debug().Str("key", key).Int("nodes", tree.Len()).Int("bytes", len(data)).Msg("Loaded snapshot")
	return tree, true, nil
}

// Save writes the full tree under key, replacing any previous snapshot
func Save(ctx context.Context, store kv.Store, key string, tree *filesystem.Tree) error {
	logger := util.GetLogger("snapshot.Save")

	data, err := Encode(tree.Nodes())
	if err != nil {
		return err
	}
	if err := store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}

	logger.Trace().Str("key", key).Int("bytes", len(data)).Msg("Saved snapshot")
	return nil
}
