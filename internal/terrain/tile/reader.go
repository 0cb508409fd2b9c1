package tile

import (
	"context"

	"github.com/Faultbox/orbis/pkg/catalog"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentReads bounds how many tile reads are in flight.
const DefaultMaxConcurrentReads = 5

// Reader hands out read permits shared by every tile set, so the global
// number of reads in flight never exceeds its limit.
type Reader struct {
	cat   *catalog.Catalog
	sem   *semaphore.Weighted
	limit int
}

// NewReader returns a reader over cat allowing maxReads concurrent reads.
func NewReader(cat *catalog.Catalog, maxReads int) *Reader {
	if maxReads <= 0 {
		maxReads = DefaultMaxConcurrentReads
	}
	return &Reader{
		cat:   cat,
		sem:   semaphore.NewWeighted(int64(maxReads)),
		limit: maxReads,
	}
}

// Limit returns the maximum number of concurrent reads.
func (r *Reader) Limit() int { return r.limit }

// tryAcquire takes a permit without blocking.
func (r *Reader) tryAcquire() bool { return r.sem.TryAcquire(1) }

func (r *Reader) release() { r.sem.Release(1) }

// read returns the stored bytes of a tile. The slice aliases the catalog
// mapping.
func (r *Reader) read(info NodeInfo) ([]byte, error) {
	ext := info.Extent
	return r.cat.ReadMapped(info.File, &ext)
}

// Idle blocks until every permit has been returned or ctx is done.
func (r *Reader) Idle(ctx context.Context) error {
	if err := r.sem.Acquire(ctx, int64(r.limit)); err != nil {
		return err
	}
	r.sem.Release(int64(r.limit))
	return nil
}
