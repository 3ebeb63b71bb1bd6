package storage

import (
	"context"
	"time"

	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/pkg/errors"
)

// A Report summarizes a reconciliation pass.
type Report struct {
	// PendingFiles is the number of abandoned uploads removed.
	PendingFiles int
	// OrphanChunks is the number of chunks removed because no file references them.
	OrphanChunks int
	// ExtraChunks is the number of chunks removed beyond the end of an alive file.
	ExtraChunks int
}

// Clean returns true when nothing had to be removed.
func (r Report) Clean() bool {
	return r.PendingFiles == 0 && r.OrphanChunks == 0 && r.ExtraChunks == 0
}

// Reconcile removes the uploads that received no write for longer than grace
// and the chunks that are not referenced by a file.
func (b *Bucket) Reconcile(ctx context.Context, grace time.Duration) (Report, error) {
	var report Report

	before := b.now().Add(-grace)
	files, err := b.db.PendingFilesBefore(before)
	if err != nil {
		return report, errors.Wrap(err, "reconcile")
	}

	for _, file := range files {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		var reaped bool
		reaped, err = b.db.ReapPendingFile(file.ID, before)
		if err != nil {
			return report, errors.Wrap(err, "reconcile")
		}
		if !reaped {
			continue
		}

		report.PendingFiles++
		b.logger.Infof("removed abandoned upload %s (%s)", file.ID, file.Filename)
	}

	//

	type chunkRef struct {
		fileID string
		n      int
	}
	var refs []chunkRef
	err = b.db.EachChunkRef(func(fileID string, n int) error {
		refs = append(refs, chunkRef{fileID: fileID, n: n})
		return ctx.Err()
	})
	if err != nil {
		return report, errors.Wrap(err, "reconcile")
	}

	known := map[string]*model.File{}
	for _, ref := range refs {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		file, seen := known[ref.fileID]
		if !seen {
			file, err = b.db.FindFile(ref.fileID)
			if err != nil && !b.db.IsNotFound(err) {
				return report, errors.Wrap(err, "reconcile")
			}
			if err != nil {
				file = nil
			}
			known[ref.fileID] = file
		}

		switch {
		case file == nil:
			report.OrphanChunks++
		case file.Alive && ref.n >= file.Chunks:
			report.ExtraChunks++
		default:
			continue
		}

		if err = b.db.DeleteChunk(ref.fileID, ref.n); err != nil && !b.db.IsNotFound(err) {
			return report, errors.Wrap(err, "reconcile")
		}
		b.logger.Infof("removed %s chunk %d", ref.fileID, ref.n)
	}

	return report, nil
}
