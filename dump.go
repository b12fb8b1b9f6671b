package dynhash

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/blockstore"
	"github.com/outofforest/dynhash/record"
)

// Dump writes human-readable content of both files.
func (hf *HashFile[R]) Dump(w io.Writer) error {
	if hf.closed {
		return errors.WithStack(ErrClosed)
	}

	if err := dumpStore(w, "main", hf.main); err != nil {
		return err
	}
	return dumpStore(w, "overflow", hf.overflow)
}

func dumpStore[R record.Record[R]](w io.Writer, name string, s *blockstore.Store[R]) error {
	if _, err := fmt.Fprintf(w, "%s file: size=%d blockSize=%d blockingFactor=%d freeHead=%d\n",
		name, s.Size(), s.BlockSize(), s.BlockingFactor(), s.FreeHead()); err != nil {
		return errors.WithStack(err)
	}

	return s.Walk(func(address blocks.Address, b *blocks.Block[R]) error {
		var err error
		switch b.Role() {
		case blocks.FreeRole:
			links := b.FreeLinks()
			_, err = fmt.Fprintf(w, "  [%d] free prev=%d next=%d\n", address, links.Prev, links.Next)
		default:
			chain := b.Chain()
			_, err = fmt.Fprintf(w, "  [%d] valid=%d head=%d prev=%d next=%d\n",
				address, b.ValidCount(), chain.Head, chain.Prev, chain.Next)
			for _, r := range b.Records() {
				if err != nil {
					break
				}
				_, err = fmt.Fprintf(w, "    %+v\n", r)
			}
		}
		return errors.WithStack(err)
	})
}
