// Media HTTP handlers.
//
// This file exposes the REST endpoints backing file uploads and cleanup:
//   - POST /upload       (multipart file -> public URL)
//   - POST /delete-file  (batch best-effort delete by public URL)
//
// Upload failures are surfaced to the caller so the UI can show a transient
// error; deletes report per-URL outcomes instead of failing the batch.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadResponse is returned on a successful upload.
type UploadResponse struct {
	PublicURL string `json:"publicUrl"`
}

// Upload accepts a multipart form with a "file" part, stores it in the
// object store, and returns the public URL.
func (h *Handlers) Upload(c *gin.Context) {
	if h.media == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeNoMediaStore, "media storage is not configured")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeUploadFailed, "no file in request")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeUploadFailed, "cannot read uploaded file")
		return
	}
	defer f.Close()

	url, err := h.media.Upload(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUploadFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, UploadResponse{PublicURL: url})
}

// DeleteFilesRequest is the JSON payload for a batch delete.
type DeleteFilesRequest struct {
	FileURLs []string `json:"fileUrls" binding:"required,min=1"`
}

// DeleteFilesResponse reports the outcome of a batch delete.
type DeleteFilesResponse struct {
	Success bool     `json:"success"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

// DeleteFiles resolves each public URL to a storage key and issues a
// best-effort batch delete.
func (h *Handlers) DeleteFiles(c *gin.Context) {
	if h.media == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeNoMediaStore, "media storage is not configured")
		return
	}

	var req DeleteFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "fileUrls must be a non-empty array")
		return
	}

	res := h.media.Delete(c.Request.Context(), req.FileURLs)
	ok(c, http.StatusOK, DeleteFilesResponse{
		Success: len(res.Errors) == 0,
		Deleted: res.Deleted,
		Errors:  res.Errors,
	})
}
