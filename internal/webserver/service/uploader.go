package service

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/mdouchement/uploadstore/internal/storage"
	"github.com/pkg/errors"
)

// FormField is the multipart field holding the uploaded file.
const FormField = "file"

// ErrNoFile is returned when the request has no file part.
var ErrNoFile = errors.New("no file uploaded")

// An Uploader streams a multipart file part into a bucket.
type Uploader struct {
	bucket *storage.Bucket
	field  string
}

// NewUploader returns a new Uploader reading the FormField part.
func NewUploader(bucket *storage.Bucket) *Uploader {
	return &Uploader{
		bucket: bucket,
		field:  FormField,
	}
}

// Upload stores the first file part of the request.
// The part is streamed, it is never buffered entirely.
func (s *Uploader) Upload(ctx context.Context, r *http.Request) (*model.File, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.Wrap(ErrNoFile, err.Error())
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, ErrNoFile
		}
		if err != nil {
			return nil, errors.Wrap(ErrNoFile, err.Error())
		}

		if part.FormName() != s.field || part.FileName() == "" {
			part.Close()
			continue
		}

		return s.store(ctx, part)
	}
}

func (s *Uploader) store(ctx context.Context, part *multipart.Part) (*model.File, error) {
	defer part.Close()

	contentType := part.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	return s.bucket.Write(ctx, part, part.FileName(), contentType)
}
