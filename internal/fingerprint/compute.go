package fingerprint

import (
	"context"
	stderrors "errors"
	"io/fs"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Request names one file to fingerprint.
type Request struct {
	Path       string
	FromSource bool
}

// Compute fingerprints reqs with at most workers concurrent Stat calls and
// returns the resulting table. Files that vanished between listing and
// hashing are left out so the classifier reports them as deleted. A
// workers value <= 0 means runtime.NumCPU().
func Compute(ctx context.Context, src Source, reqs []Request, workers int) (*Table, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	table := NewTable()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	results := make(chan Fingerprint)
	written := make(chan struct{})
	go func() {
		defer close(written)
		for fp := range results {
			table.Put(fp)
		}
	}()

	for _, req := range reqs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			modTime, hash, err := src.Stat(gctx, req.Path)
			if err != nil {
				if stderrors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			fp := Fingerprint{
				Path:            req.Path,
				LastModifiedUTC: modTime.UTC(),
				ContentHash:     hash,
				IsFromSource:    req.FromSource,
			}
			select {
			case results <- fp:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(results)
	<-written
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
