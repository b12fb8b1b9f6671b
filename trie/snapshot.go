package trie

import (
	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/blocks"
)

// ErrInvalidSnapshot is returned if snapshot does not describe a valid trie.
var ErrInvalidSnapshot = errors.New("invalid trie snapshot")

// SnapshotNode is the node of flattened trie. Missing children are stored as Absent nodes.
type SnapshotNode struct {
	Kind           Kind
	Address        blocks.Address
	MainCount      int
	OverflowCount  int
	OverflowBlocks int
}

// Snapshot returns the trie flattened in preorder.
func (t *Trie) Snapshot() []SnapshotNode {
	snapshot := make([]SnapshotNode, 0, len(t.nodes))
	stack := []NodeIndex{t.root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if i == NoNode {
			snapshot = append(snapshot, SnapshotNode{Kind: Absent, Address: blocks.InvalidAddress})
			continue
		}

		n := &t.nodes[i]
		if n.Kind == Inner {
			snapshot = append(snapshot, SnapshotNode{Kind: Inner, Address: blocks.InvalidAddress})
			stack = append(stack, n.Right, n.Left)
			continue
		}

		snapshot = append(snapshot, SnapshotNode{
			Kind:           Leaf,
			Address:        n.Address,
			MainCount:      n.MainCount,
			OverflowCount:  n.OverflowCount,
			OverflowBlocks: n.OverflowBlocks,
		})
	}
	return snapshot
}

// Restore rebuilds trie from snapshot.
func Restore(snapshot []SnapshotNode, maxDepth int) (*Trie, error) {
	if len(snapshot) == 0 || snapshot[0].Kind != Inner {
		return nil, errors.Wrap(ErrInvalidSnapshot, "root must be an inner node")
	}

	t, err := New(maxDepth)
	if err != nil {
		return nil, err
	}
	t.nodes = t.nodes[:0]

	r := restorer{t: t, snapshot: snapshot}
	t.root, err = r.restore(NoNode, 0)
	if err != nil {
		return nil, err
	}
	if r.position != len(snapshot) {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "%d trailing nodes", len(snapshot)-r.position)
	}
	return t, nil
}

type restorer struct {
	t        *Trie
	snapshot []SnapshotNode
	position int
}

func (r *restorer) restore(parent NodeIndex, depth int) (NodeIndex, error) {
	if r.position >= len(r.snapshot) {
		return NoNode, errors.Wrap(ErrInvalidSnapshot, "unexpected end of snapshot")
	}
	sn := r.snapshot[r.position]
	r.position++

	switch sn.Kind {
	case Absent:
		if parent == NoNode {
			return NoNode, errors.Wrap(ErrInvalidSnapshot, "root is absent")
		}
		return NoNode, nil
	case Leaf:
		if parent == NoNode {
			return NoNode, errors.Wrap(ErrInvalidSnapshot, "root is a leaf")
		}
		if sn.MainCount < 0 || sn.OverflowCount < 0 || sn.OverflowBlocks < 0 {
			return NoNode, errors.Wrapf(ErrInvalidSnapshot, "negative counters in node %d", r.position-1)
		}
		if sn.Address < blocks.InvalidAddress || (!sn.Address.Valid() && sn.Count() > 0) {
			return NoNode, errors.Wrapf(ErrInvalidSnapshot, "invalid address %d in node %d", sn.Address, r.position-1)
		}
		return r.t.newNode(Node{
			Kind:           Leaf,
			Parent:         parent,
			Depth:          depth,
			Left:           NoNode,
			Right:          NoNode,
			Address:        sn.Address,
			MainCount:      sn.MainCount,
			OverflowCount:  sn.OverflowCount,
			OverflowBlocks: sn.OverflowBlocks,
		}), nil
	case Inner:
		if depth >= r.t.maxDepth {
			return NoNode, errors.Wrapf(ErrInvalidSnapshot, "inner node %d at max depth", r.position-1)
		}
		i := r.t.newNode(Node{Kind: Inner, Parent: parent, Depth: depth, Left: NoNode, Right: NoNode})
		left, err := r.restore(i, min(depth+1, r.t.maxDepth))
		if err != nil {
			return NoNode, err
		}
		right, err := r.restore(i, min(depth+1, r.t.maxDepth))
		if err != nil {
			return NoNode, err
		}
		r.t.nodes[i].Left = left
		r.t.nodes[i].Right = right
		return i, nil
	default:
		return NoNode, errors.Wrapf(ErrInvalidSnapshot, "unknown kind %d of node %d", sn.Kind, r.position-1)
	}
}

// Count returns the number of records stored by the leaf.
func (sn SnapshotNode) Count() int {
	return sn.MainCount + sn.OverflowCount
}
