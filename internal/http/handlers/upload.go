package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/gmr-archive-backend/internal/http/response"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
	"github.com/yungbote/gmr-archive-backend/internal/services"
)

// multipartOverhead is the slack allowed on top of the file limit for form
// boundaries and the sessionId field.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	log      *logger.Logger
	uploads  services.UploadService
	maxBytes int64
}

func NewUploadHandler(log *logger.Logger, uploads services.UploadService, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = services.DefaultUploadMaxBytes
	}
	return &UploadHandler{
		log:      log.With("handler", "UploadHandler"),
		uploads:  uploads,
		maxBytes: maxBytes,
	}
}

// POST /api/upload
// multipart: file=<video>, sessionId=<uuid>
func (h *UploadHandler) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		respondValidation(c, "invalid multipart form")
		return
	}
	sessionID, err := uuid.Parse(strings.TrimSpace(c.Request.FormValue("sessionId")))
	if err != nil || sessionID == uuid.Nil {
		respondValidation(c, "missing or invalid sessionId")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondValidation(c, "missing file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.log.Error("cannot open uploaded file", "error", err)
		respondValidation(c, "unreadable file")
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if ct := services.NormalizeContentType(contentType); ct == "" || ct == "application/octet-stream" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		contentType = http.DetectContentType(buf[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			h.log.Error("cannot rewind uploaded file", "error", err)
			respondValidation(c, "unreadable file")
			return
		}
	}

	res, err := h.uploads.UploadSessionMedia(c.Request.Context(), services.UploadInput{
		SessionID:   sessionID,
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"key":     res.Key,
		"url":     res.URL,
		"bytes":   res.Bytes,
		"session": newSessionResponse(res.Session),
	})
}
