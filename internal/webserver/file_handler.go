package webserver

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/mdouchement/uploadstore/internal/storage"
	"github.com/mdouchement/uploadstore/internal/webserver/serializer"
	"github.com/mdouchement/uploadstore/internal/webserver/service"
	"github.com/mdouchement/uploadstore/internal/webserver/weberror"
)

const (
	msgNoFiles  = "No files found"
	msgNoFile   = "No file found"
	msgNotImage = "Not an image"
)

type file struct {
	logger logger.Logger
	bucket *storage.Bucket
}

func (h *file) Index(c echo.Context) error {
	c.Set("handler_method", "file.Index")

	files, err := h.bucket.List(c.Request().Context())
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	if len(files) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"files": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"files": serializer.IndexFiles(files)})
}

func (h *file) Upload(c echo.Context) error {
	c.Set("handler_method", "file.Upload")

	uploader := service.NewUploader(h.bucket)
	file, err := uploader.Upload(c.Request().Context(), c.Request())
	if err != nil {
		if storage.Is(err, service.ErrNoFile) || storage.Is(err, storage.ErrUploadInterrupted) {
			return weberror.New(http.StatusBadRequest, err.Error())
		}
		return failure(err, msgNoFile)
	}

	h.logger.Infof("file.Upload: %s stored as %s (%d bytes)", file.OriginalName, file.ID, file.Length)
	return c.JSON(http.StatusCreated, echo.Map{"file": serializer.File(file)})
}

func (h *file) List(c echo.Context) error {
	c.Set("handler_method", "file.List")

	files, err := h.bucket.List(c.Request().Context())
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	if len(files) == 0 {
		return weberror.New(http.StatusNotFound, msgNoFiles)
	}
	return c.JSON(http.StatusOK, serializer.Files(files))
}

func (h *file) Show(c echo.Context) error {
	c.Set("handler_method", "file.Show")

	file, err := h.bucket.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(err, msgNoFile)
	}

	return c.JSON(http.StatusOK, serializer.File(file))
}

func (h *file) Image(c echo.Context) error {
	c.Set("handler_method", "file.Image")

	r, err := h.bucket.OpenImage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(err, msgNoFile)
	}
	defer r.Close()

	file := r.File()
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(file.Length, 10))
	c.Response().Header().Set("Etag", strconv.Quote(file.MD5))
	return c.Stream(http.StatusOK, file.ContentType, r)
}

func (h *file) Download(c echo.Context) error {
	c.Set("handler_method", "file.Download")

	r, err := h.bucket.Open(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(err, msgNoFile)
	}
	defer r.Close()

	file := r.File()
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(file.Length, 10))
	c.Response().Header().Set("Etag", strconv.Quote(file.MD5))
	c.Response().Header().Set(echo.HeaderContentDisposition, attachment(file))
	return c.Stream(http.StatusOK, file.ContentType, r)
}

func (h *file) Delete(c echo.Context) error {
	c.Set("handler_method", "file.Delete")

	err := h.bucket.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(err, msgNoFile)
	}

	return c.Redirect(http.StatusSeeOther, "/")
}

// attachment returns the Content-Disposition of a download named after the uploaded file.
// Names that cannot be encoded fall back to the storage name.
func attachment(file *model.File) string {
	for _, name := range []string{file.OriginalName, file.Filename} {
		if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
			return v
		}
	}
	return "attachment"
}

func failure(err error, notfound string) error {
	switch {
	case storage.Is(err, storage.ErrNotFound):
		return weberror.New(http.StatusNotFound, notfound)
	case storage.Is(err, storage.ErrUnsupportedMediaType):
		return weberror.New(http.StatusUnsupportedMediaType, msgNotImage)
	default:
		return weberror.New(http.StatusInternalServerError, err.Error())
	}
}
