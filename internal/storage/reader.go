package storage

import (
	"context"
	"io"

	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/pkg/errors"
)

// A Reader streams the content of a file chunk by chunk.
// Only one chunk is held in memory at a time.
type Reader struct {
	ctx    context.Context
	bucket *Bucket
	file   *model.File
	n      int
	buf    []byte
	read   int64
	err    error
}

func (b *Bucket) newReader(ctx context.Context, file *model.File) *Reader {
	return &Reader{
		ctx:    ctx,
		bucket: b,
		file:   file,
	}
}

// File returns the record of the streamed file.
func (r *Reader) File() *model.File {
	return r.file
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	for len(r.buf) == 0 {
		if r.n >= r.file.Chunks {
			if r.read != r.file.Length {
				r.err = errors.Wrapf(ErrOrphanChunks, "%s: read %d bytes out of %d", r.file.ID, r.read, r.file.Length)
				return 0, r.err
			}

			r.err = io.EOF
			return 0, r.err
		}

		if err := r.next(); err != nil {
			r.err = err
			return 0, r.err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.read += int64(n)
	return n, nil
}

// Close releases the current chunk. Subsequent reads fail.
func (r *Reader) Close() error {
	r.buf = nil
	if r.err == nil || r.err == io.EOF {
		r.err = errors.New("read on closed reader")
	}
	return nil
}

func (r *Reader) next() error {
	if err := r.ctx.Err(); err != nil {
		return errors.Wrap(err, "read canceled")
	}

	db := r.bucket.db
	chunk, err := db.FindChunk(r.file.ID, r.n)
	if err != nil {
		if !db.IsNotFound(err) {
			return errors.Wrapf(err, "could not get chunk %d", r.n)
		}

		// The file may have been deleted after the stream was opened.
		if _, ferr := db.FindFile(r.file.ID); db.IsNotFound(ferr) {
			return errors.Wrap(ErrNotFound, r.file.ID)
		}
		return errors.Wrapf(ErrOrphanChunks, "%s: missing chunk %d", r.file.ID, r.n)
	}

	if expected := r.file.ExpectedChunkLength(r.n); int64(len(chunk.Data)) != expected {
		return errors.Wrapf(ErrOrphanChunks, "%s: chunk %d holds %d bytes, expected %d", r.file.ID, r.n, len(chunk.Data), expected)
	}

	r.n++
	r.buf = chunk.Data
	return nil
}
