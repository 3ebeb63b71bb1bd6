package database

import (
	"time"

	"github.com/mdouchement/uploadstore/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		FileInteraction
		ChunkInteraction
	}

	// A FileInteraction defines all the methods used to interact with a file record.
	FileInteraction interface {
		// ListFiles returns the alive files ordered by upload date.
		ListFiles() ([]*model.File, error)
		FindFile(id string) (*model.File, error)
		// PendingFilesBefore returns the files still being written whose last write happened before t.
		PendingFilesBefore(t time.Time) ([]*model.File, error)
		// FinalizeFile marks the file alive. It fails with a not found error
		// when the pending record no longer exists.
		FinalizeFile(file *model.File) error
		// ReapPendingFile removes the pending file and its chunks if it was
		// not written since before. It reports whether the file was removed.
		ReapPendingFile(id string, before time.Time) (bool, error)
		// DeleteFile removes the file and all its chunks in a single transaction.
		DeleteFile(file *model.File) error
	}

	// A ChunkInteraction defines all the methods used to interact with a chunk record.
	ChunkInteraction interface {
		SaveChunk(chunk *model.Chunk) error
		// AppendChunk saves the chunk of a pending file and refreshes the file's
		// last write time. It fails with a not found error when the file is gone.
		AppendChunk(file *model.File, chunk *model.Chunk) error
		FindChunk(fileID string, n int) (*model.Chunk, error)
		// EachChunkRef calls fn with the key of every chunk, without loading their data.
		EachChunkRef(fn func(fileID string, n int) error) error
		DeleteChunk(fileID string, n int) error
		// DeleteChunksByFileID removes all the chunks referencing fileID.
		DeleteChunksByFileID(fileID string) (int, error)
	}
)
