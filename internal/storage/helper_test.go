package storage

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/database"
	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

func newLogger() logger.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logger.WrapLogrus(log)
}

func newDatabase(t *testing.T) database.Client {
	t.Helper()

	db, err := database.StormOpen(filepath.Join(t.TempDir(), "uploadstore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newBucket(t *testing.T, db database.Client, chunkSize int64) *Bucket {
	t.Helper()

	return NewBucket(db, newLogger(), Options{ChunkSize: chunkSize})
}

func payload(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

func upload(t *testing.T, b *Bucket, data []byte, name, contentType string) *model.File {
	t.Helper()

	file, err := b.Write(context.Background(), bytes.NewReader(data), name, contentType)
	require.NoError(t, err)
	return file
}

func readAll(t *testing.T, b *Bucket, id string) []byte {
	t.Helper()

	r, err := b.Open(context.Background(), id)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

// chunksOf returns the chunk indexes stored for the given file.
func chunksOf(t *testing.T, db database.Client, fileID string) []int {
	t.Helper()

	indexes := []int{}
	err := db.EachChunkRef(func(id string, n int) error {
		if id == fileID {
			indexes = append(indexes, n)
		}
		return nil
	})
	require.NoError(t, err)
	return indexes
}

// A faultyDatabase fails on demand.
type faultyDatabase struct {
	database.Client

	failChunkAt int // fails the n-th AppendChunk (1-based), disabled when zero
	chunkSaves  int
	failFinal   bool
	failDelete  bool
}

func (db *faultyDatabase) AppendChunk(f *model.File, c *model.Chunk) error {
	db.chunkSaves++
	if db.failChunkAt > 0 && db.chunkSaves >= db.failChunkAt {
		return errInjected
	}
	return db.Client.AppendChunk(f, c)
}

func (db *faultyDatabase) FinalizeFile(f *model.File) error {
	if db.failFinal {
		return errInjected
	}
	return db.Client.FinalizeFile(f)
}

func (db *faultyDatabase) DeleteFile(f *model.File) error {
	if db.failDelete {
		return errInjected
	}
	return db.Client.DeleteFile(f)
}

// failingReader returns data then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// A gatedReader yields head, then blocks until release is closed before yielding tail.
type gatedReader struct {
	head    []byte
	tail    []byte
	reached chan struct{}
	release chan struct{}
}

func newGatedReader(head, tail []byte) *gatedReader {
	return &gatedReader{
		head:    head,
		tail:    tail,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *gatedReader) Read(p []byte) (int, error) {
	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		return n, nil
	}

	if r.reached != nil {
		close(r.reached)
		r.reached = nil
		<-r.release
	}

	if len(r.tail) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.tail)
	r.tail = r.tail[n:]
	return n, nil
}
