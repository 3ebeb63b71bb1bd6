package storage

import (
	"github.com/mdouchement/uploadstore/internal/identifier"
	"github.com/pkg/errors"
)

var (
	// ErrEntropyUnavailable is returned when no storage name can be generated.
	ErrEntropyUnavailable = identifier.ErrEntropyUnavailable
	// ErrStorageWriteFailed is returned when an upload could not be persisted.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrUploadInterrupted is returned when the uploaded content could not be read to its end.
	ErrUploadInterrupted = errors.New("upload interrupted")
	// ErrNotFound is returned when the file does not exist or is not alive.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedMediaType is returned when a file cannot be served as an image.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrOrphanChunks is returned when a file and its chunks are inconsistent.
	ErrOrphanChunks = errors.New("orphan chunks")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
