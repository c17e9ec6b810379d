package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/aibidi/aibidi/internal/metrics"
	"github.com/aibidi/aibidi/internal/uploads"
	"github.com/aibidi/aibidi/pkg/types"
	"github.com/labstack/echo/v4"
)

// upload stores a multipart "file" field and returns its server-side path.
func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "No file uploaded",
		})
	}

	src, err := fh.Open()
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read upload: " + err.Error(),
		})
	}
	defer src.Close()

	path, err := s.uploads.Save(fh.Filename, src)
	if errors.Is(err, uploads.ErrInvalidName) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		log.Printf("uploads: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	log.Printf("uploads: stored %s (%d bytes)", path, fh.Size)
	return c.JSON(http.StatusOK, types.UploadResponse{Path: path})
}
