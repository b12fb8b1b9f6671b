package dynhash

import (
	"sort"

	"go.uber.org/zap"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/record"
	"github.com/outofforest/dynhash/trie"
)

// expand splits the leaf having full main block until records fit into blocks or max depth is reached.
func (hf *HashFile[R]) expand(leaf trie.NodeIndex, b *blocks.Block[R], r R) error {
	records := append(b.Records(), r)
	if err := hf.main.Free(hf.trie.Node(leaf).Address); err != nil {
		return err
	}

	blockingFactor := hf.config.MainBlockingFactor
	for {
		depth := hf.trie.Node(leaf).Depth
		if depth >= hf.trie.MaxDepth() {
			address, nb, err := hf.newMainBlock(records[:blockingFactor])
			if err != nil {
				return err
			}
			n := hf.trie.Node(leaf)
			n.Address = address
			n.MainCount = blockingFactor
			return hf.insertOverflow(leaf, nb, records[blockingFactor])
		}

		if err := hf.trie.Split(leaf); err != nil {
			return err
		}

		var left, right []R
		for _, rec := range records {
			if rec.RoutingKey().Bit(depth) {
				left = append(left, rec)
			} else {
				right = append(right, rec)
			}
		}

		hf.log.Debug("Leaf split",
			zap.Int("depth", depth),
			zap.Int("left", len(left)),
			zap.Int("right", len(right)))

		next := trie.NoNode
		for _, side := range []struct {
			bit     bool
			records []R
		}{
			{bit: true, records: left},
			{bit: false, records: right},
		} {
			if len(side.records) == 0 {
				continue
			}
			child := hf.trie.Attach(leaf, side.bit)
			if len(side.records) > blockingFactor {
				next = child
				continue
			}

			address, _, err := hf.newMainBlock(side.records)
			if err != nil {
				return err
			}
			n := hf.trie.Node(child)
			n.Address = address
			n.MainCount = len(side.records)
		}

		if next == trie.NoNode {
			return nil
		}
		leaf = next
	}
}

func (hf *HashFile[R]) newMainBlock(records []R) (blocks.Address, *blocks.Block[R], error) {
	address, b, err := hf.main.New()
	if err != nil {
		return blocks.InvalidAddress, nil, err
	}
	for _, r := range records {
		if err := b.Add(r); err != nil {
			return blocks.InvalidAddress, nil, err
		}
	}
	if err := hf.main.Write(address, b); err != nil {
		return blocks.InvalidAddress, nil, err
	}
	return address, b, nil
}

// insertOverflow stores record in the first overflow block having free slot, new block is appended to the chain if
// needed.
func (hf *HashFile[R]) insertOverflow(leaf trie.NodeIndex, mainBlock *blocks.Block[R], r R) error {
	n := hf.trie.Node(leaf)

	last := blocks.InvalidAddress
	for address := mainBlock.Chain().Head; address.Valid(); {
		b, err := hf.overflow.Read(address)
		if err != nil {
			return err
		}
		if b.HasFreeSpace() {
			if err := b.Add(r); err != nil {
				return err
			}
			if err := hf.overflow.Write(address, b); err != nil {
				return err
			}
			n.OverflowCount++
			return nil
		}
		last = address
		address = b.Chain().Next
	}

	address, b, err := hf.overflow.New()
	if err != nil {
		return err
	}
	if err := b.Add(r); err != nil {
		return err
	}
	b.SetChain(blocks.Chain{Head: blocks.InvalidAddress, Next: blocks.InvalidAddress, Prev: last})
	if err := hf.overflow.Write(address, b); err != nil {
		return err
	}

	if last.Valid() {
		lastBlock, err := hf.overflow.Read(last)
		if err != nil {
			return err
		}
		chain := lastBlock.Chain()
		chain.Next = address
		lastBlock.SetChain(chain)
		if err := hf.overflow.Write(last, lastBlock); err != nil {
			return err
		}
	} else {
		chain := mainBlock.Chain()
		chain.Head = address
		mainBlock.SetChain(chain)
		if err := hf.main.Write(n.Address, mainBlock); err != nil {
			return err
		}
	}

	n.OverflowCount++
	n.OverflowBlocks++

	hf.log.Debug("Overflow block appended",
		zap.Int64("main", int64(n.Address)),
		zap.Int64("address", int64(address)),
		zap.Int("blocks", n.OverflowBlocks))
	return nil
}

func (hf *HashFile[R]) deleteFromMain(loc location[R]) error {
	n := hf.trie.Node(loc.leaf)
	n.MainCount--
	parent := n.Parent

	if loc.block.IsEmpty() && !n.HasOverflow() && !loc.block.Chain().Head.Valid() {
		if err := hf.main.Free(loc.address); err != nil {
			return err
		}
		if err := hf.trie.Detach(loc.leaf); err != nil {
			return err
		}
		return hf.contract(parent)
	}

	if err := hf.main.Write(loc.address, loc.block); err != nil {
		return err
	}
	if err := hf.contract(parent); err != nil {
		return err
	}
	if !hf.trie.IsLeaf(loc.leaf) {
		return nil
	}
	return hf.shakeOff(loc.leaf)
}

func (hf *HashFile[R]) deleteFromOverflow(loc location[R]) error {
	n := hf.trie.Node(loc.leaf)
	n.OverflowCount--

	if loc.block.IsEmpty() {
		if err := hf.unlink(loc.leaf, loc.block); err != nil {
			return err
		}
		if err := hf.overflow.Free(loc.address); err != nil {
			return err
		}
		n.OverflowBlocks--
	} else if err := hf.overflow.Write(loc.address, loc.block); err != nil {
		return err
	}

	return hf.shakeOff(loc.leaf)
}

// unlink removes overflow block from the chain of the leaf.
func (hf *HashFile[R]) unlink(leaf trie.NodeIndex, b *blocks.Block[R]) error {
	chain := b.Chain()

	if chain.Prev.Valid() {
		prev, err := hf.overflow.Read(chain.Prev)
		if err != nil {
			return err
		}
		prevChain := prev.Chain()
		prevChain.Next = chain.Next
		prev.SetChain(prevChain)
		if err := hf.overflow.Write(chain.Prev, prev); err != nil {
			return err
		}
	} else {
		mainAddress := hf.trie.Node(leaf).Address
		mainBlock, err := hf.main.Read(mainAddress)
		if err != nil {
			return err
		}
		mainChain := mainBlock.Chain()
		mainChain.Head = chain.Next
		mainBlock.SetChain(mainChain)
		if err := hf.main.Write(mainAddress, mainBlock); err != nil {
			return err
		}
	}

	if chain.Next.Valid() {
		next, err := hf.overflow.Read(chain.Next)
		if err != nil {
			return err
		}
		nextChain := next.Chain()
		nextChain.Prev = chain.Prev
		next.SetChain(nextChain)
		if err := hf.overflow.Write(chain.Next, next); err != nil {
			return err
		}
	}
	return nil
}

// contract walks up from the inner node merging children fitting into one block. When merging stops, empty
// children stored at the end of the main file are removed.
func (hf *HashFile[R]) contract(i trie.NodeIndex) error {
	for i != trie.NoNode {
		if !hf.canMerge(i) {
			return hf.dropTrailingChildren(i)
		}
		parent := hf.trie.Node(i).Parent
		if err := hf.merge(i); err != nil {
			return err
		}
		i = parent
	}
	return nil
}

func (hf *HashFile[R]) canMerge(i trie.NodeIndex) bool {
	if i == hf.trie.Root() {
		return false
	}

	var count int
	for _, bit := range []bool{true, false} {
		child := hf.trie.Child(i, bit)
		if child == trie.NoNode {
			continue
		}
		if !hf.trie.IsLeaf(child) {
			return false
		}
		n := hf.trie.Node(child)
		if n.HasOverflow() {
			return false
		}
		count += n.MainCount
	}
	return count <= hf.config.MainBlockingFactor
}

func (hf *HashFile[R]) merge(i trie.NodeIndex) error {
	var records []R
	var addresses []blocks.Address
	for _, bit := range []bool{true, false} {
		child := hf.trie.Child(i, bit)
		if child == trie.NoNode {
			continue
		}
		address := hf.trie.Node(child).Address
		if !address.Valid() {
			continue
		}
		b, err := hf.main.Read(address)
		if err != nil {
			return err
		}
		records = append(records, b.Records()...)
		addresses = append(addresses, address)
	}

	if err := hf.freeMainBlocks(addresses); err != nil {
		return err
	}

	address := blocks.InvalidAddress
	if len(records) > 0 {
		var err error
		if address, _, err = hf.newMainBlock(records); err != nil {
			return err
		}
	}

	hf.log.Debug("Leaves merged",
		zap.Int("depth", hf.trie.Node(i).Depth),
		zap.Int("records", len(records)),
		zap.Int64("address", int64(address)))

	return hf.trie.Merge(i, address, len(records))
}

func (hf *HashFile[R]) dropTrailingChildren(i trie.NodeIndex) error {
	for _, bit := range []bool{true, false} {
		child := hf.trie.Child(i, bit)
		if !hf.trie.IsLeaf(child) {
			continue
		}
		n := hf.trie.Node(child)
		if n.MainCount != 0 || n.HasOverflow() || !n.Address.Valid() || !hf.main.IsLast(n.Address) {
			continue
		}
		if err := hf.main.Free(n.Address); err != nil {
			return err
		}
		if err := hf.trie.Detach(child); err != nil {
			return err
		}
	}
	return nil
}

// shakeOff repacks records of the leaf if it holds more overflow blocks than needed.
func (hf *HashFile[R]) shakeOff(leaf trie.NodeIndex) error {
	n := hf.trie.Node(leaf)
	blockingFactor := hf.config.OverflowBlockingFactor
	if n.OverflowBlocks <= (n.Count()+blockingFactor-1)/blockingFactor {
		return nil
	}

	mainBlock, err := hf.main.Read(n.Address)
	if err != nil {
		return err
	}

	type chainBlock struct {
		address blocks.Address
		block   *blocks.Block[R]
	}

	var chain []chainBlock
	queue := mainBlock.Records()
	for address := mainBlock.Chain().Head; address.Valid(); {
		b, err := hf.overflow.Read(address)
		if err != nil {
			return err
		}
		chain = append(chain, chainBlock{address: address, block: b})
		queue = append(queue, b.Records()...)
		address = b.Chain().Next
	}
	total := len(queue)

	queue = refill(mainBlock, queue)
	mainCount := mainBlock.ValidCount()

	var kept int
	for _, cb := range chain {
		queue = refill(cb.block, queue)
		if !cb.block.IsEmpty() {
			kept++
		}
	}

	// Blocks are filled in chain order, so the empty ones form the tail.
	if kept == 0 {
		mainChain := mainBlock.Chain()
		mainChain.Head = blocks.InvalidAddress
		mainBlock.SetChain(mainChain)
	} else {
		lastChain := chain[kept-1].block.Chain()
		lastChain.Next = blocks.InvalidAddress
		chain[kept-1].block.SetChain(lastChain)
	}

	if err := hf.main.Write(n.Address, mainBlock); err != nil {
		return err
	}
	for _, cb := range chain[:kept] {
		if err := hf.overflow.Write(cb.address, cb.block); err != nil {
			return err
		}
	}

	empty := make([]blocks.Address, 0, len(chain)-kept)
	for _, cb := range chain[kept:] {
		empty = append(empty, cb.address)
	}
	if err := hf.freeOverflowBlocks(empty); err != nil {
		return err
	}

	hf.log.Debug("Overflow shaken off",
		zap.Int64("main", int64(n.Address)),
		zap.Int("blocksBefore", n.OverflowBlocks),
		zap.Int("blocksAfter", kept))

	n.MainCount = mainCount
	n.OverflowCount = total - mainCount
	n.OverflowBlocks = kept
	return nil
}

func refill[R record.Record[R]](b *blocks.Block[R], queue []R) []R {
	b.Clear()
	for len(queue) > 0 && b.HasFreeSpace() {
		// Add can't fail, free space is checked.
		_ = b.Add(queue[0])
		queue = queue[1:]
	}
	return queue
}

func (hf *HashFile[R]) freeMainBlocks(addresses []blocks.Address) error {
	sortDescending(addresses)
	for _, address := range addresses {
		if err := hf.main.Free(address); err != nil {
			return err
		}
	}
	return nil
}

func (hf *HashFile[R]) freeOverflowBlocks(addresses []blocks.Address) error {
	sortDescending(addresses)
	for _, address := range addresses {
		if err := hf.overflow.Free(address); err != nil {
			return err
		}
	}
	return nil
}

// sortDescending puts the highest address first, so blocks at the end of the file are truncated one by one.
func sortDescending(addresses []blocks.Address) {
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] > addresses[j] })
}
