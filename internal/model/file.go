package model

import "time"

// DefaultChunkSize is the size used to split stored files (255 KiB).
const DefaultChunkSize = 255 << 10

// A File is the catalog entry describing a stored blob.
// Its content lives in Chunks numbered from 0 to Chunks-1.
type File struct {
	Base `json:",inline" storm:"inline"`

	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Length       int64     `json:"length"`
	ChunkSize    int64     `json:"chunk_size"`
	Chunks       int       `json:"chunks"`
	MD5          string    `json:"md5"`
	UploadDate   time.Time `json:"upload_date"`
	Bucket       string    `json:"bucket"`
	// Alive is false while the chunks are being written.
	Alive bool `json:"alive"`
}

// LastActivity returns the last time the record was written.
func (f *File) LastActivity() *time.Time {
	if f.UpdatedAt != nil {
		return f.UpdatedAt
	}
	return f.CreatedAt
}

// ExpectedChunkLength returns the number of bytes chunk n must hold.
func (f *File) ExpectedChunkLength(n int) int64 {
	remaining := f.Length - int64(n)*f.ChunkSize
	if remaining > f.ChunkSize {
		return f.ChunkSize
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}
