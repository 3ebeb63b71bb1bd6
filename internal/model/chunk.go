package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A Chunk is a slice of a File's content.
// The owning File record controls its lifetime.
type Chunk struct {
	ID     string `json:"id"       storm:"id"`
	FileID string `json:"files_id"`
	N      int    `json:"n"`
	Data   []byte `json:"data"`
}

// NewChunk returns the n-th chunk of the given file.
func NewChunk(fileID string, n int, data []byte) *Chunk {
	return &Chunk{
		ID:     ChunkID(fileID, n),
		FileID: fileID,
		N:      n,
		Data:   data,
	}
}

// ChunkID returns the storage key of the n-th chunk of a file.
func ChunkID(fileID string, n int) string {
	return fmt.Sprintf("%s%010d", ChunkPrefix(fileID), n)
}

// ChunkPrefix returns the storage key prefix shared by all the chunks of a file.
func ChunkPrefix(fileID string) string {
	return fileID + ":"
}

// ParseChunkID splits a chunk storage key into its file identifier and index.
func ParseChunkID(id string) (fileID string, n int, err error) {
	i := strings.LastIndexByte(id, ':')
	if i < 0 {
		return "", 0, errors.Errorf("malformed chunk id %q", id)
	}

	n, err = strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, errors.Errorf("malformed chunk id %q", id)
	}
	return id[:i], n, nil
}
