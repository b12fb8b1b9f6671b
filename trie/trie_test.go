package trie

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/record"
)

func TestNew(t *testing.T) {
	requireT := require.New(t)

	_, err := New(0)
	requireT.Error(err)
	_, err = New(record.KeyBits + 1)
	requireT.Error(err)

	tr, err := New(3)
	requireT.NoError(err)

	root := tr.Node(tr.Root())
	requireT.Equal(Inner, root.Kind)
	requireT.Equal(0, root.Depth)

	for _, bit := range []bool{true, false} {
		child := tr.Child(tr.Root(), bit)
		requireT.True(tr.IsLeaf(child))
		requireT.Equal(1, tr.Node(child).Depth)
		requireT.False(tr.Node(child).Address.Valid())
	}
}

func TestLocateRoutesByBits(t *testing.T) {
	requireT := require.New(t)

	tr, err := New(3)
	requireT.NoError(err)

	leaf, exists := tr.Locate(record.RoutingKey(0b1))
	requireT.True(exists)
	requireT.Equal(tr.Child(tr.Root(), true), leaf)

	leaf, exists = tr.Locate(record.RoutingKey(0b0))
	requireT.True(exists)
	requireT.Equal(tr.Child(tr.Root(), false), leaf)

	// Split the left leaf, now bit 1 decides.
	left := tr.Child(tr.Root(), true)
	requireT.NoError(tr.Split(left))
	requireT.Equal(Inner, tr.Node(left).Kind)

	_, exists = tr.Locate(record.RoutingKey(0b11))
	requireT.False(exists)

	leftLeft := tr.Ensure(record.RoutingKey(0b11))
	requireT.Equal(tr.Child(left, true), leftLeft)
	requireT.Equal(2, tr.Node(leftLeft).Depth)
	requireT.Equal(left, tr.Node(leftLeft).Parent)

	leaf, exists = tr.Locate(record.RoutingKey(0b11))
	requireT.True(exists)
	requireT.Equal(leftLeft, leaf)

	_, exists = tr.Locate(record.RoutingKey(0b01))
	requireT.False(exists)
}

func TestSplitAtMaxDepthFails(t *testing.T) {
	requireT := require.New(t)

	tr, err := New(2)
	requireT.NoError(err)

	left := tr.Child(tr.Root(), true)
	requireT.NoError(tr.Split(left))
	leaf := tr.Attach(left, false)
	requireT.Equal(2, tr.Node(leaf).Depth)
	requireT.Error(tr.Split(leaf))
	requireT.Error(tr.Split(left))
}

func TestDetachAndMerge(t *testing.T) {
	requireT := require.New(t)

	tr, err := New(4)
	requireT.NoError(err)

	left := tr.Child(tr.Root(), true)
	requireT.NoError(tr.Split(left))
	a := tr.Attach(left, true)
	b := tr.Attach(left, false)
	tr.Node(a).MainCount = 2
	tr.Node(b).MainCount = 1
	requireT.Equal(3, tr.Count())

	requireT.NoError(tr.Detach(b))
	requireT.Equal(NoNode, tr.Child(left, false))
	requireT.Equal(2, tr.Count())

	requireT.Error(tr.Merge(tr.Root(), 0, 0))
	requireT.NoError(tr.Merge(left, 128, 2))
	requireT.True(tr.IsLeaf(left))
	requireT.EqualValues(128, tr.Node(left).Address)
	requireT.Equal(2, tr.Count())
	requireT.False(tr.IsLeaf(a))

	// Released indexes are reused.
	requireT.NoError(tr.Split(left))
	c := tr.Attach(left, true)
	requireT.Contains([]NodeIndex{a, b}, c)
}

func TestSnapshotRestore(t *testing.T) {
	requireT := require.New(t)

	tr, err := New(3)
	requireT.NoError(err)

	left := tr.Child(tr.Root(), true)
	requireT.NoError(tr.Split(left))
	ll := tr.Attach(left, true)
	*tr.Node(ll) = Node{
		Kind:           Leaf,
		Parent:         left,
		Depth:          2,
		Left:           NoNode,
		Right:          NoNode,
		Address:        256,
		MainCount:      5,
		OverflowCount:  3,
		OverflowBlocks: 1,
	}
	right := tr.Child(tr.Root(), false)
	tr.Node(right).Address = 0
	tr.Node(right).MainCount = 2

	snapshot := tr.Snapshot()
	requireT.Equal([]SnapshotNode{
		{Kind: Inner, Address: blocks.InvalidAddress},
		{Kind: Inner, Address: blocks.InvalidAddress},
		{Kind: Leaf, Address: 256, MainCount: 5, OverflowCount: 3, OverflowBlocks: 1},
		{Kind: Absent, Address: blocks.InvalidAddress},
		{Kind: Leaf, Address: 0, MainCount: 2},
	}, snapshot)

	tr2, err := Restore(snapshot, 3)
	requireT.NoError(err)
	requireT.Equal(snapshot, tr2.Snapshot())
	requireT.Equal(10, tr2.Count())

	leaf, exists := tr2.Locate(record.RoutingKey(0b11))
	requireT.True(exists)
	requireT.Equal(2, tr2.Node(leaf).Depth)
	requireT.EqualValues(256, tr2.Node(leaf).Address)
}

func TestRestoreInvalid(t *testing.T) {
	requireT := require.New(t)

	inner := SnapshotNode{Kind: Inner, Address: blocks.InvalidAddress}
	absent := SnapshotNode{Kind: Absent, Address: blocks.InvalidAddress}
	leaf := SnapshotNode{Kind: Leaf, Address: 0, MainCount: 1}

	for _, snapshot := range [][]SnapshotNode{
		nil,
		{leaf},
		{inner, leaf},
		{inner, leaf, absent, absent},
		{inner, inner, inner, leaf, leaf, absent, absent},
		{inner, {Kind: Leaf, Address: blocks.InvalidAddress, MainCount: 1}, absent},
		{inner, {Kind: 7}, absent},
	} {
		_, err := Restore(snapshot, 2)
		requireT.ErrorIs(err, ErrInvalidSnapshot)
	}
}
