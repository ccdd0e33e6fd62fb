package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/gmr-archive-backend/internal/data/repos"
	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/observability"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
	"github.com/yungbote/gmr-archive-backend/internal/platform/gcp"
)

// DefaultUploadMaxBytes is 500 MiB.
const DefaultUploadMaxBytes int64 = 500 << 20

var allowedMediaTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

type UploadInput struct {
	SessionID   uuid.UUID
	Filename    string
	ContentType string
	// Size is the declared size; zero means unknown.
	Size int64
	Body io.Reader
}

type UploadResult struct {
	Key     string
	URL     string
	Bytes   int64
	Session *types.Session
}

// UploadService stores evidentiary recordings and points the session at them.
type UploadService interface {
	UploadSessionMedia(ctx context.Context, in UploadInput) (*UploadResult, error)
}

type uploadService struct {
	log       *logger.Logger
	bucket    gcp.BucketService
	sessions  repos.SessionRepo
	aggregate types.SessionAggregate
	metrics   *observability.Metrics
	maxBytes  int64
	now       func() time.Time
}

func NewUploadService(
	baseLog *logger.Logger,
	bucket gcp.BucketService,
	sessions repos.SessionRepo,
	aggregate types.SessionAggregate,
	metrics *observability.Metrics,
	maxBytes int64,
) UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &uploadService{
		log:       baseLog.With("service", "UploadService"),
		bucket:    bucket,
		sessions:  sessions,
		aggregate: aggregate,
		metrics:   metrics,
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (us *uploadService) UploadSessionMedia(ctx context.Context, in UploadInput) (*UploadResult, error) {
	const op = "Archive.Upload.SessionMedia"
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if in.SessionID == uuid.Nil {
		return nil, us.reject(op, "missing sessionId")
	}
	if in.Body == nil {
		return nil, us.reject(op, "missing file")
	}
	contentType := NormalizeContentType(in.ContentType)
	if !allowedMediaTypes[contentType] {
		return nil, us.reject(op, fmt.Sprintf("unsupported content type %q", in.ContentType))
	}
	if in.Size > us.maxBytes {
		return nil, us.reject(op, fmt.Sprintf("file exceeds %d bytes", us.maxBytes))
	}

	dbc := dbctx.Context{Ctx: ctx}
	s, err := us.sessions.GetByID(dbc, in.SessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, sessionNotFound(in.SessionID)
	}
	if !s.IsOwner(actor) {
		return nil, domainagg.NewError(domainagg.CodeInvalidActor, op, "only the contributor may upload media", nil)
	}
	if s.Status == types.StatusArchived {
		return nil, domainagg.NewError(domainagg.CodeInvalidTransition, op, "session is archived", nil)
	}

	key := MediaKey(in.SessionID, us.now(), in.Filename)
	body := &countingReader{r: io.LimitReader(in.Body, us.maxBytes+1)}
	if err := us.bucket.UploadFile(dbc, key, body, contentType); err != nil {
		us.metrics.ObserveUpload("storage_error", body.n)
		us.log.Error("media upload failed", "session_id", in.SessionID, "storage_key", key, "error", err)
		return nil, fmt.Errorf("upload media: %w", err)
	}
	if body.n > us.maxBytes {
		us.discard(dbc, key)
		return nil, us.reject(op, fmt.Sprintf("file exceeds %d bytes", us.maxBytes))
	}

	url := us.bucket.GetPublicURL(key)
	updated, err := us.aggregate.AttachMedia(ctx, types.AttachMediaInput{
		SessionID: in.SessionID,
		ActorID:   actor,
		Locator:   url,
	})
	if err != nil {
		us.discard(dbc, key)
		us.metrics.ObserveUpload("attach_error", body.n)
		return nil, err
	}

	us.metrics.ObserveUpload("success", body.n)
	us.log.Info("media uploaded", "session_id", in.SessionID, "storage_key", key, "bytes", body.n)
	return &UploadResult{Key: key, URL: url, Bytes: body.n, Session: updated}, nil
}

func (us *uploadService) reject(op, msg string) error {
	us.metrics.ObserveUpload("rejected", 0)
	return domainagg.NewError(domainagg.CodeValidation, op, msg, nil)
}

func (us *uploadService) discard(dbc dbctx.Context, key string) {
	if err := us.bucket.DeleteFile(dbc, key); err != nil {
		us.log.Warn("failed to remove orphaned media", "storage_key", key, "error", err)
	}
}

// MediaKey is sessions/<session>/<unix-nanos>-<sanitised filename>.
func MediaKey(sessionID uuid.UUID, at time.Time, filename string) string {
	return fmt.Sprintf("sessions/%s/%d-%s", sessionID, at.UnixNano(), SanitizeFilename(filename))
}

// SanitizeFilename keeps letters, digits, dot, dash and underscore from the
// base name. Anything else becomes an underscore.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	return out
}

// NormalizeContentType lowercases the media type and drops parameters.
func NormalizeContentType(raw string) string {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
