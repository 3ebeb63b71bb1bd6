package serializer

import (
	"github.com/mdouchement/uploadstore/internal/model"
)

// Files returns the serialized form of the given models.
func Files(files []*model.File) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(files))

	for _, file := range files {
		sl = append(sl, File(file))
	}

	return sl
}

// IndexFiles returns the serialized form of the given models annotated with isImage.
func IndexFiles(files []*model.File) []map[string]interface{} {
	sl := Files(files)

	for i, file := range files {
		sl[i]["isImage"] = model.IsServableAsImage(file)
	}

	return sl
}

// File returns the serialized form of the given model.
func File(file *model.File) map[string]interface{} {
	return map[string]interface{}{
		"id":            file.ID,
		"filename":      file.Filename,
		"original_name": file.OriginalName,
		"content_type":  file.ContentType,
		"length":        file.Length,
		"chunk_size":    file.ChunkSize,
		"chunks":        file.Chunks,
		"md5":           file.MD5,
		"upload_date":   file.UploadDate,
		"bucket":        file.Bucket,
	}
}
