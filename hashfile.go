package dynhash

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/blockstore"
	"github.com/outofforest/dynhash/persistence"
	"github.com/outofforest/dynhash/pkg/filedev"
	"github.com/outofforest/dynhash/record"
	"github.com/outofforest/dynhash/trie"
)

var (
	// ErrNotFound is returned if record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned if record with the same key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyMismatch is returned if edited record has different key than the replaced one.
	ErrKeyMismatch = errors.New("key mismatch")

	// ErrClosed is returned if hash file has been closed.
	ErrClosed = errors.New("hash file is closed")
)

// HashFile stores records of type R using dynamic hashing.
type HashFile[R record.Record[R]] struct {
	config   Config
	log      *zap.Logger
	trie     *trie.Trie
	main     *blockstore.Store[R]
	overflow *blockstore.Store[R]
	closed   bool
}

// Open creates empty hash file. Existing content of both files is removed.
func Open[R record.Record[R]](config Config) (*HashFile[R], error) {
	return open[R](config, nil)
}

// Reopen opens hash file stored previously, directory is restored from the snapshot.
func Reopen[R record.Record[R]](config Config, snapshot []trie.SnapshotNode) (*HashFile[R], error) {
	if len(snapshot) == 0 {
		return nil, errors.Wrap(trie.ErrInvalidSnapshot, "snapshot is empty")
	}
	return open[R](config, snapshot)
}

func open[R record.Record[R]](config Config, snapshot []trie.SnapshotNode) (*HashFile[R], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	reset := snapshot == nil
	mainDev, err := filedev.Open(config.MainPath, reset)
	if err != nil {
		return nil, err
	}
	overflowDev, err := filedev.Open(config.OverflowPath, reset)
	if err != nil {
		_ = mainDev.Close()
		return nil, err
	}

	hf, err := New[R](mainDev, overflowDev, config, snapshot)
	if err != nil {
		_ = mainDev.Close()
		_ = overflowDev.Close()
		return nil, err
	}
	return hf, nil
}

// New creates hash file on top of provided devices. If snapshot is nil, devices are wiped and new directory is
// created. Otherwise, directory is restored from the snapshot and free lists are rebuilt.
func New[R record.Record[R]](
	mainDev, overflowDev persistence.Dev,
	config Config,
	snapshot []trie.SnapshotNode,
) (*HashFile[R], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := config.logger()
	hf := &HashFile[R]{
		config: config,
		log:    log,
		main: blockstore.New[R](persistence.OpenStore(mainDev), blockstore.Config{
			Name:           "main",
			BlockingFactor: config.MainBlockingFactor,
			CacheBlocks:    config.CacheBlocks,
			Logger:         log,
		}),
		overflow: blockstore.New[R](persistence.OpenStore(overflowDev), blockstore.Config{
			Name:           "overflow",
			BlockingFactor: config.OverflowBlockingFactor,
			CacheBlocks:    config.CacheBlocks,
			Logger:         log,
		}),
	}

	if snapshot == nil {
		if err := persistence.Initialize(mainDev); err != nil {
			return nil, err
		}
		if err := persistence.Initialize(overflowDev); err != nil {
			return nil, err
		}
		t, err := trie.New(config.MaxDepth)
		if err != nil {
			return nil, err
		}
		hf.trie = t

		log.Info("Hash file created", zap.String("main", config.MainPath), zap.String("overflow", config.OverflowPath))
		return hf, nil
	}

	t, err := trie.Restore(snapshot, config.MaxDepth)
	if err != nil {
		return nil, err
	}
	hf.trie = t
	if err := hf.rebuildFreeLists(); err != nil {
		return nil, err
	}

	log.Info("Hash file reopened",
		zap.String("main", config.MainPath),
		zap.String("overflow", config.OverflowPath),
		zap.Int("records", t.Count()))
	return hf, nil
}

// Find returns the record having the same key as probe.
func (hf *HashFile[R]) Find(probe R) (R, bool, error) {
	var zero R
	if hf.closed {
		return zero, false, errors.WithStack(ErrClosed)
	}

	loc, found, err := hf.locate(probe)
	if err != nil || !found {
		return zero, false, err
	}
	return loc.record, true, nil
}

// Insert inserts new record.
func (hf *HashFile[R]) Insert(r R) error {
	if hf.closed {
		return errors.WithStack(ErrClosed)
	}

	_, found, err := hf.locate(r)
	if err != nil {
		return err
	}
	if found {
		return errors.Wrapf(ErrDuplicateKey, "key: %d", r.Key())
	}

	leaf := hf.trie.Ensure(r.RoutingKey())
	n := hf.trie.Node(leaf)
	if !n.Address.Valid() {
		address, b, err := hf.main.New()
		if err != nil {
			return err
		}
		if err := b.Add(r); err != nil {
			return err
		}
		if err := hf.main.Write(address, b); err != nil {
			return err
		}
		n.Address = address
		n.MainCount = 1
		return nil
	}

	b, err := hf.main.Read(n.Address)
	if err != nil {
		return err
	}
	if b.HasFreeSpace() {
		if err := b.Add(r); err != nil {
			return err
		}
		if err := hf.main.Write(n.Address, b); err != nil {
			return err
		}
		n.MainCount++
		return nil
	}

	if n.Depth >= hf.trie.MaxDepth() {
		return hf.insertOverflow(leaf, b, r)
	}
	return hf.expand(leaf, b, r)
}

// Edit replaces the record. Both records must have the same key.
func (hf *HashFile[R]) Edit(old, updated R) error {
	if hf.closed {
		return errors.WithStack(ErrClosed)
	}
	if !record.Equal(old, updated) {
		return errors.Wrapf(ErrKeyMismatch, "old key: %d, new key: %d", old.Key(), updated.Key())
	}

	loc, found, err := hf.locate(old)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(ErrNotFound, "key: %d", old.Key())
	}

	if err := loc.block.Replace(updated); err != nil {
		return err
	}
	if loc.overflow {
		return hf.overflow.Write(loc.address, loc.block)
	}
	return hf.main.Write(loc.address, loc.block)
}

// Delete deletes the record having the same key as probe.
func (hf *HashFile[R]) Delete(probe R) error {
	if hf.closed {
		return errors.WithStack(ErrClosed)
	}

	loc, found, err := hf.locate(probe)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(ErrNotFound, "key: %d", probe.Key())
	}

	if err := loc.block.Remove(probe); err != nil {
		return err
	}
	if loc.overflow {
		return hf.deleteFromOverflow(loc)
	}
	return hf.deleteFromMain(loc)
}

// Len returns the number of stored records.
func (hf *HashFile[R]) Len() int {
	return hf.trie.Count()
}

// Snapshot returns the flattened directory, used to reopen the hash file later.
func (hf *HashFile[R]) Snapshot() []trie.SnapshotNode {
	return hf.trie.Snapshot()
}

// Info returns the description of the hash file.
func (hf *HashFile[R]) Info() Info {
	var r R
	return Info{
		MainBlockingFactor:     hf.config.MainBlockingFactor,
		OverflowBlockingFactor: hf.config.OverflowBlockingFactor,
		RecordType:             fmt.Sprintf("%T", r),
		MainPath:               hf.config.MainPath,
		OverflowPath:           hf.config.OverflowPath,
		MaxDepth:               hf.config.MaxDepth,
	}
}

// Close closes both files. Closing closed hash file does nothing.
func (hf *HashFile[R]) Close() error {
	if hf.closed {
		return nil
	}
	hf.closed = true

	err := multierr.Append(hf.main.Close(), hf.overflow.Close())
	hf.log.Info("Hash file closed", zap.Int("records", hf.trie.Count()), zap.Error(err))
	return err
}

type location[R record.Record[R]] struct {
	leaf     trie.NodeIndex
	address  blocks.Address
	block    *blocks.Block[R]
	overflow bool
	record   R
}

// locate finds the block containing the record. Directory is never modified.
func (hf *HashFile[R]) locate(probe R) (location[R], bool, error) {
	leaf, exists := hf.trie.Locate(probe.RoutingKey())
	if !exists {
		return location[R]{}, false, nil
	}
	address := hf.trie.Node(leaf).Address
	if !address.Valid() {
		return location[R]{}, false, nil
	}

	b, err := hf.main.Read(address)
	if err != nil {
		return location[R]{}, false, err
	}
	if r, found := b.Get(probe); found {
		return location[R]{leaf: leaf, address: address, block: b, record: r}, true, nil
	}

	for address = b.Chain().Head; address.Valid(); address = b.Chain().Next {
		b, err = hf.overflow.Read(address)
		if err != nil {
			return location[R]{}, false, err
		}
		if r, found := b.Get(probe); found {
			return location[R]{leaf: leaf, address: address, block: b, overflow: true, record: r}, true, nil
		}
	}
	return location[R]{}, false, nil
}

// rebuildFreeLists verifies that restored directory matches the files and puts unused blocks on free lists.
func (hf *HashFile[R]) rebuildFreeLists() error {
	mainUsed := map[blocks.Address]struct{}{}
	overflowUsed := map[blocks.Address]struct{}{}

	var err error
	hf.trie.Leaves(func(_ trie.NodeIndex, n *trie.Node) {
		if err != nil || !n.Address.Valid() {
			return
		}
		err = hf.verifyLeaf(n, mainUsed, overflowUsed)
	})
	if err != nil {
		return err
	}

	if err := hf.main.Rebuild(mainUsed); err != nil {
		return err
	}
	return hf.overflow.Rebuild(overflowUsed)
}

func (hf *HashFile[R]) verifyLeaf(
	n *trie.Node,
	mainUsed, overflowUsed map[blocks.Address]struct{},
) error {
	if _, exists := mainUsed[n.Address]; exists {
		return errors.Wrapf(trie.ErrInvalidSnapshot, "block %d is used by many leaves", n.Address)
	}
	mainUsed[n.Address] = struct{}{}

	b, err := hf.main.Read(n.Address)
	if err != nil {
		return err
	}
	if b.Role() != blocks.LiveRole || b.ValidCount() != n.MainCount {
		return errors.Wrapf(trie.ErrInvalidSnapshot, "main block %d contains %d records, expected: %d",
			n.Address, b.ValidCount(), n.MainCount)
	}

	var overflowCount, overflowBlocks int
	for address := b.Chain().Head; address.Valid(); address = b.Chain().Next {
		if _, exists := overflowUsed[address]; exists {
			return errors.Wrapf(trie.ErrInvalidSnapshot, "overflow block %d is linked many times", address)
		}
		overflowUsed[address] = struct{}{}

		b, err = hf.overflow.Read(address)
		if err != nil {
			return err
		}
		overflowCount += b.ValidCount()
		overflowBlocks++
	}
	if overflowCount != n.OverflowCount || overflowBlocks != n.OverflowBlocks {
		return errors.Wrapf(trie.ErrInvalidSnapshot,
			"overflow chain of block %d contains %d records in %d blocks, expected: %d records in %d blocks",
			n.Address, overflowCount, overflowBlocks, n.OverflowCount, n.OverflowBlocks)
	}
	return nil
}
