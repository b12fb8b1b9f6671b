package trie

import (
	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/record"
)

// NodeIndex is the index of the node in the arena.
type NodeIndex int32

// NoNode means that node does not exist.
const NoNode NodeIndex = -1

// Kind is the kind of the node.
type Kind byte

// Node kinds.
const (
	// Absent marks released arena slots and missing children in snapshots.
	Absent Kind = iota
	Inner
	Leaf
)

// Node is the node of the directory trie.
type Node struct {
	Kind   Kind
	Parent NodeIndex
	Depth  int

	// Inner node fields.
	Left  NodeIndex
	Right NodeIndex

	// Leaf node fields.
	Address        blocks.Address
	MainCount      int
	OverflowCount  int
	OverflowBlocks int
}

// HasOverflow tells if leaf uses overflow blocks.
func (n *Node) HasOverflow() bool {
	return n.OverflowCount > 0 || n.OverflowBlocks > 0
}

// Count returns the number of records stored by the leaf.
func (n *Node) Count() int {
	return n.MainCount + n.OverflowCount
}

// Trie routes routing keys to leaves. Bit i of the key is consumed by the inner node at depth i, left child is
// taken for 1, right one for 0.
type Trie struct {
	nodes    []Node
	released []NodeIndex
	root     NodeIndex
	maxDepth int
}

// New returns trie containing inner root node and two leaves without blocks.
func New(maxDepth int) (*Trie, error) {
	if maxDepth < 1 || maxDepth > record.KeyBits {
		return nil, errors.Errorf("max depth must be in range [1, %d], provided: %d", record.KeyBits, maxDepth)
	}
	t := &Trie{
		maxDepth: maxDepth,
	}
	t.root = t.newNode(Node{Kind: Inner, Parent: NoNode, Left: NoNode, Right: NoNode})
	t.Attach(t.root, true)
	t.Attach(t.root, false)
	return t, nil
}

// MaxDepth returns the maximum depth of the leaf.
func (t *Trie) MaxDepth() int {
	return t.maxDepth
}

// Root returns the root node.
func (t *Trie) Root() NodeIndex {
	return t.root
}

// Node returns the node. Returned pointer is valid until the structure of the trie is modified.
func (t *Trie) Node(i NodeIndex) *Node {
	return &t.nodes[i]
}

// IsLeaf tells if index points to a leaf.
func (t *Trie) IsLeaf(i NodeIndex) bool {
	return i >= 0 && int(i) < len(t.nodes) && t.nodes[i].Kind == Leaf
}

// Child returns the child of inner node.
func (t *Trie) Child(i NodeIndex, bit bool) NodeIndex {
	if bit {
		return t.nodes[i].Left
	}
	return t.nodes[i].Right
}

// Locate returns the leaf owning the key. If the path ends with missing child, false is returned.
func (t *Trie) Locate(key record.RoutingKey) (NodeIndex, bool) {
	i := t.root
	for t.nodes[i].Kind == Inner {
		i = t.Child(i, key.Bit(t.nodes[i].Depth))
		if i == NoNode {
			return NoNode, false
		}
	}
	return i, true
}

// Ensure returns the leaf owning the key, missing leaf is attached on the way.
func (t *Trie) Ensure(key record.RoutingKey) NodeIndex {
	i := t.root
	for t.nodes[i].Kind == Inner {
		bit := key.Bit(t.nodes[i].Depth)
		child := t.Child(i, bit)
		if child == NoNode {
			child = t.Attach(i, bit)
		}
		i = child
	}
	return i
}

// Attach creates new leaf without block as a child of inner node.
func (t *Trie) Attach(parent NodeIndex, bit bool) NodeIndex {
	child := t.newNode(Node{
		Kind:    Leaf,
		Parent:  parent,
		Depth:   t.childDepth(parent),
		Left:    NoNode,
		Right:   NoNode,
		Address: blocks.InvalidAddress,
	})
	if bit {
		t.nodes[parent].Left = child
	} else {
		t.nodes[parent].Right = child
	}
	return child
}

// Split turns leaf into inner node without children.
func (t *Trie) Split(i NodeIndex) error {
	n := &t.nodes[i]
	if n.Kind != Leaf {
		return errors.Errorf("node %d is not a leaf", i)
	}
	if n.Depth >= t.maxDepth {
		return errors.Errorf("leaf %d is at max depth %d", i, t.maxDepth)
	}
	*n = Node{
		Kind:   Inner,
		Parent: n.Parent,
		Depth:  n.Depth,
		Left:   NoNode,
		Right:  NoNode,
	}
	return nil
}

// Detach removes leaf from its parent.
func (t *Trie) Detach(i NodeIndex) error {
	n := t.nodes[i]
	if n.Kind != Leaf {
		return errors.Errorf("node %d is not a leaf", i)
	}
	parent := &t.nodes[n.Parent]
	switch i {
	case parent.Left:
		parent.Left = NoNode
	case parent.Right:
		parent.Right = NoNode
	}
	t.release(i)
	return nil
}

// Merge turns inner node into leaf, children are released.
func (t *Trie) Merge(i NodeIndex, address blocks.Address, mainCount int) error {
	n := &t.nodes[i]
	if n.Kind != Inner {
		return errors.Errorf("node %d is not an inner node", i)
	}
	if i == t.root {
		return errors.New("root can't be merged")
	}
	for _, child := range []NodeIndex{n.Left, n.Right} {
		if child == NoNode {
			continue
		}
		if t.nodes[child].Kind != Leaf {
			return errors.Errorf("child %d of node %d is not a leaf", child, i)
		}
	}
	if n.Left != NoNode {
		t.release(n.Left)
	}
	if n.Right != NoNode {
		t.release(n.Right)
	}
	*n = Node{
		Kind:      Leaf,
		Parent:    n.Parent,
		Depth:     n.Depth,
		Left:      NoNode,
		Right:     NoNode,
		Address:   address,
		MainCount: mainCount,
	}
	return nil
}

// Leaves calls fn for every leaf.
func (t *Trie) Leaves(fn func(i NodeIndex, n *Node)) {
	for i := range t.nodes {
		if t.nodes[i].Kind == Leaf {
			fn(NodeIndex(i), &t.nodes[i])
		}
	}
}

// Count returns the number of records stored in all the leaves.
func (t *Trie) Count() int {
	var count int
	t.Leaves(func(_ NodeIndex, n *Node) {
		count += n.Count()
	})
	return count
}

func (t *Trie) childDepth(parent NodeIndex) int {
	return min(t.nodes[parent].Depth+1, t.maxDepth)
}

func (t *Trie) newNode(n Node) NodeIndex {
	if len(t.released) > 0 {
		i := t.released[len(t.released)-1]
		t.released = t.released[:len(t.released)-1]
		t.nodes[i] = n
		return i
	}
	t.nodes = append(t.nodes, n)
	return NodeIndex(len(t.nodes) - 1)
}

func (t *Trie) release(i NodeIndex) {
	t.nodes[i] = Node{Kind: Absent, Parent: NoNode, Left: NoNode, Right: NoNode, Address: blocks.InvalidAddress}
	t.released = append(t.released, i)
}
