package storage

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/database"
	"github.com/mdouchement/uploadstore/internal/identifier"
	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/pkg/errors"
)

// DefaultName is the namespace of the stored files.
const DefaultName = "uploads"

type (
	// Options configures a Bucket.
	Options struct {
		// Name is the bucket tag written on every file, DefaultName when empty.
		Name string
		// ChunkSize is the size of the chunks, model.DefaultChunkSize when zero.
		ChunkSize int64
		// Entropy is the random source of the storage names, crypto/rand when nil.
		Entropy io.Reader
		// Now returns the current time, time.Now when nil.
		Now func() time.Time
	}

	// A Bucket stores files as ordered chunks in the database.
	Bucket struct {
		logger    logger.Logger
		db        database.Client
		name      string
		chunkSize int64
		entropy   io.Reader
		now       func() time.Time
	}
)

// NewBucket returns a new Bucket.
func NewBucket(db database.Client, log logger.Logger, opts Options) *Bucket {
	b := &Bucket{
		logger:    log.WithPrefix("[storage]"),
		db:        db,
		name:      opts.Name,
		chunkSize: opts.ChunkSize,
		entropy:   opts.Entropy,
		now:       opts.Now,
	}

	if b.name == "" {
		b.name = DefaultName
	}
	if b.chunkSize <= 0 {
		b.chunkSize = model.DefaultChunkSize
	}
	if b.entropy == nil {
		b.entropy = rand.Reader
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Name returns the bucket tag.
func (b *Bucket) Name() string {
	return b.name
}

// ChunkSize returns the size used to split the files.
func (b *Bucket) ChunkSize() int64 {
	return b.chunkSize
}

// Write reads r until EOF and stores its content as a new file.
// The returned file is alive only when all its chunks are persisted.
func (b *Bucket) Write(ctx context.Context, r io.Reader, original, contentType string) (*model.File, error) {
	filename, err := identifier.Generate(b.entropy, original)
	if err != nil {
		return nil, err
	}

	file := &model.File{
		Filename:     filename,
		OriginalName: original,
		ContentType:  contentType,
		ChunkSize:    b.chunkSize,
		Bucket:       b.name,
	}
	if err = b.db.Save(file); err != nil {
		return nil, errors.Wrap(ErrStorageWriteFailed, err.Error())
	}

	//

	r = source{Reader: r}
	h := md5.New()
	buf := make([]byte, b.chunkSize)
	for {
		if err = ctx.Err(); err != nil {
			b.rollback(file)
			return nil, errors.Wrap(err, "upload canceled")
		}

		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			chunk := model.NewChunk(file.ID, file.Chunks, buf[:n])
			if err = b.db.AppendChunk(file, chunk); err != nil {
				b.rollback(file)
				return nil, errors.Wrapf(ErrStorageWriteFailed, "chunk %d: %s", chunk.N, err)
			}

			h.Write(buf[:n])
			file.Length += int64(n)
			file.Chunks++
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			b.rollback(file)
			return nil, errors.Wrapf(ErrUploadInterrupted, "after %d bytes: %s", file.Length, rerr)
		}
	}

	//

	file.MD5 = hex.EncodeToString(h.Sum(nil))
	file.UploadDate = b.now().UTC()
	if err = b.db.FinalizeFile(file); err != nil {
		// Not found means the pending record has been reaped, its chunks with it.
		b.rollback(file)
		return nil, errors.Wrap(ErrStorageWriteFailed, err.Error())
	}

	b.logger.Debugf("stored %s (%s, %d bytes, %d chunks)", file.ID, file.Filename, file.Length, file.Chunks)
	return file, nil
}

// List returns all the alive files.
func (b *Bucket) List(ctx context.Context) ([]*model.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := b.db.ListFiles()
	return files, errors.Wrap(err, "could not list files")
}

// Get returns the alive file identified by id.
func (b *Bucket) Get(ctx context.Context, id string) (*model.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := b.db.FindFile(id)
	if err != nil {
		if b.db.IsNotFound(err) {
			return nil, errors.Wrap(ErrNotFound, id)
		}
		return nil, errors.Wrap(err, "could not get file")
	}
	if !file.Alive {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	return file, nil
}

// OpenImage opens the file only if it can be served as an image.
func (b *Bucket) OpenImage(ctx context.Context, id string) (*Reader, error) {
	file, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.IsServableAsImage(file) {
		return nil, errors.Wrap(ErrUnsupportedMediaType, file.ContentType)
	}
	return b.newReader(ctx, file), nil
}

// Open returns a lazy reader over the content of the file identified by id.
func (b *Bucket) Open(ctx context.Context, id string) (*Reader, error) {
	file, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.newReader(ctx, file), nil
}

// Delete removes the file and all its chunks.
// The file stays visible until all its chunks are removed.
func (b *Bucket) Delete(ctx context.Context, id string) error {
	file, err := b.Get(ctx, id)
	if err != nil {
		return err
	}

	err = b.db.DeleteFile(file)
	if err != nil {
		if b.db.IsNotFound(err) {
			return errors.Wrap(ErrNotFound, id)
		}
		return errors.Wrap(err, "could not delete file")
	}

	b.logger.Debugf("deleted %s (%d chunks)", file.ID, file.Chunks)
	return nil
}

// source keeps an io.ErrUnexpectedEOF of the uploaded stream apart from
// the one io.ReadFull returns for a short final window.
type source struct {
	io.Reader
}

func (s source) Read(p []byte) (int, error) {
	n, err := s.Reader.Read(p)
	if err == io.ErrUnexpectedEOF {
		err = errors.Wrap(err, "truncated upload")
	}
	return n, err
}

func (b *Bucket) rollback(file *model.File) {
	if err := b.db.DeleteFile(file); err != nil && !b.db.IsNotFound(err) {
		// Left pending, Reconcile removes it once the grace period is over.
		b.logger.Errorf("could not rollback %s: %s", file.ID, err)
	}
}
