package database

import (
	"bytes"
	"sort"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/gob"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

type strm struct {
	db *storm.DB
}

const (
	// chunkBucket is the storm bucket holding model.Chunk records.
	chunkBucket = "Chunk"
	// chunkScanBatch bounds the number of chunk keys read per transaction.
	chunkScanBatch = 1024
)

// StormCodec is the format used to store data in the database.
// Chunks carry raw bytes, gob keeps them unencoded.
var StormCodec = storm.Codec(gob.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.File{}); err != nil {
		return errors.Wrap(err, "could not init file index")
	}

	err = db.Init(&model.Chunk{})
	return errors.Wrap(err, "could not init chunk index")
}

// StormReIndex rebuilds the indexes of Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.File{}); err != nil {
		return errors.Wrap(err, "could not ReIndex files")
	}

	err = db.ReIndex(&model.Chunk{})
	return errors.Wrap(err, "could not ReIndex chunks")
}

// StormOpen opens the database and ensures its buckets exist.
// It returns once the database is ready to serve requests.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	if err := db.Init(&model.File{}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not init file index")
	}
	if err := db.Init(&model.Chunk{}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not init chunk index")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

//
// File
//

func (c *strm) ListFiles() ([]*model.File, error) {
	files, err := c.allFiles()
	if err != nil {
		return nil, errors.Wrap(err, "could not get all files")
	}

	alive := files[:0]
	for _, file := range files {
		if file.Alive {
			alive = append(alive, file)
		}
	}

	sort.SliceStable(alive, func(i, j int) bool {
		if alive[i].UploadDate.Equal(alive[j].UploadDate) {
			return alive[i].ID < alive[j].ID
		}
		return alive[i].UploadDate.Before(alive[j].UploadDate)
	})
	return alive, nil
}

func (c *strm) FindFile(id string) (*model.File, error) {
	var file model.File
	err := c.db.One("ID", id, &file)
	return &file, errors.Wrap(err, "could not find file")
}

func (c *strm) PendingFilesBefore(t time.Time) ([]*model.File, error) {
	files, err := c.allFiles()
	if err != nil {
		return nil, errors.Wrap(err, "could not get pending files")
	}

	pending := files[:0]
	for _, file := range files {
		if stale(file, t) {
			pending = append(pending, file)
		}
	}
	return pending, nil
}

func (c *strm) FinalizeFile(file *model.File) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin file finalization")
	}
	defer tx.Rollback()

	var current model.File
	if err = tx.One("ID", file.ID, &current); err != nil {
		return errors.Wrap(err, "could not find file")
	}

	file.SetUpdatedAt(time.Now().UTC())
	file.Alive = true
	if err = tx.Save(file); err != nil {
		file.Alive = false
		return errors.Wrap(err, "could not save file")
	}

	if err = tx.Commit(); err != nil {
		file.Alive = false
		return errors.Wrap(err, "could not commit file finalization")
	}
	return nil
}

func (c *strm) ReapPendingFile(id string, before time.Time) (bool, error) {
	var reaped bool
	err := c.db.Bolt.Update(func(btx *bolt.Tx) error {
		tx := c.db.WithTransaction(btx)

		var file model.File
		err := tx.One("ID", id, &file)
		if err == storm.ErrNotFound {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "could not find file")
		}
		if !stale(&file, before) {
			// Completed or written to since it was listed.
			return nil
		}

		// A crashed upload may have written chunks after the last count it saved.
		if _, err = c.deleteChunks(btx, id); err != nil {
			return err
		}
		if err = tx.DeleteStruct(&file); err != nil {
			return errors.Wrap(err, "could not delete file")
		}

		reaped = true
		return nil
	})
	return reaped, errors.Wrap(err, "could not reap pending file")
}

func (c *strm) DeleteFile(file *model.File) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin file deletion")
	}
	defer tx.Rollback()

	for n := 0; n < file.Chunks; n++ {
		err = tx.DeleteStruct(&model.Chunk{ID: model.ChunkID(file.ID, n)})
		if err != nil && err != storm.ErrNotFound {
			return errors.Wrapf(err, "could not delete chunk %d", n)
		}
	}

	if err = tx.DeleteStruct(&model.File{Base: model.Base{ID: file.ID}}); err != nil {
		return errors.Wrap(err, "could not delete file")
	}

	return errors.Wrap(tx.Commit(), "could not commit file deletion")
}

// stale reports whether file is pending and was last written before t.
func stale(file *model.File, t time.Time) bool {
	if file.Alive {
		return false
	}
	last := file.LastActivity()
	return last != nil && last.Before(t)
}

func (c *strm) allFiles() ([]*model.File, error) {
	files := make([]*model.File, 0)
	err := c.db.All(&files)
	return files, err
}

//
// Chunk
//

func (c *strm) SaveChunk(chunk *model.Chunk) error {
	return errors.Wrap(c.db.Save(chunk), "could not save chunk")
}

func (c *strm) AppendChunk(file *model.File, chunk *model.Chunk) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin chunk append")
	}
	defer tx.Rollback()

	var current model.File
	if err = tx.One("ID", file.ID, &current); err != nil {
		return errors.Wrap(err, "could not find file")
	}

	if err = tx.Save(chunk); err != nil {
		return errors.Wrap(err, "could not save chunk")
	}

	current.SetUpdatedAt(time.Now().UTC())
	if err = tx.Save(&current); err != nil {
		return errors.Wrap(err, "could not touch file")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit chunk append")
	}
	file.UpdatedAt = current.UpdatedAt
	return nil
}

func (c *strm) FindChunk(fileID string, n int) (*model.Chunk, error) {
	var chunk model.Chunk
	err := c.db.One("ID", model.ChunkID(fileID, n), &chunk)
	return &chunk, errors.Wrap(err, "could not find chunk")
}

func (c *strm) EachChunkRef(fn func(fileID string, n int) error) error {
	var after []byte
	for {
		keys := make([]string, 0, chunkScanBatch)
		err := c.db.Bolt.View(func(btx *bolt.Tx) error {
			bucket := c.db.GetBucket(btx, chunkBucket)
			if bucket == nil {
				return nil
			}

			cursor := bucket.Cursor()
			k, v := cursor.First()
			if after != nil {
				k, v = cursor.Seek(after)
				if bytes.Equal(k, after) {
					k, v = cursor.Next()
				}
			}
			for ; k != nil && len(keys) < chunkScanBatch; k, v = cursor.Next() {
				if v == nil {
					continue // storm metadata and index buckets
				}
				keys = append(keys, string(k))
			}
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "could not scan chunks")
		}

		for _, key := range keys {
			fileID, n, err := model.ParseChunkID(key)
			if err != nil {
				return errors.Wrap(err, "could not scan chunks")
			}
			if err = fn(fileID, n); err != nil {
				return err
			}
		}

		if len(keys) < chunkScanBatch {
			return nil
		}
		after = []byte(keys[len(keys)-1])
	}
}

func (c *strm) DeleteChunk(fileID string, n int) error {
	err := c.db.DeleteStruct(&model.Chunk{ID: model.ChunkID(fileID, n)})
	return errors.Wrap(err, "could not delete chunk")
}

func (c *strm) DeleteChunksByFileID(fileID string) (int, error) {
	var count int
	err := c.db.Bolt.Update(func(btx *bolt.Tx) error {
		var err error
		count, err = c.deleteChunks(btx, fileID)
		return err
	})
	return count, err
}

// deleteChunks removes, within btx, every chunk whose key starts with fileID.
func (c *strm) deleteChunks(btx *bolt.Tx, fileID string) (int, error) {
	bucket := c.db.GetBucket(btx, chunkBucket)
	if bucket == nil {
		return 0, nil
	}

	prefix := []byte(model.ChunkPrefix(fileID))

	var ids []string
	cursor := bucket.Cursor()
	for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
		if v != nil {
			ids = append(ids, string(k))
		}
	}

	tx := c.db.WithTransaction(btx)
	for _, id := range ids {
		if err := tx.DeleteStruct(&model.Chunk{ID: id}); err != nil && err != storm.ErrNotFound {
			return 0, errors.Wrap(err, "could not delete chunks")
		}
	}
	return len(ids), nil
}
