package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
)

func TestUploadStoresMediaAndAttachesLocator(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.sessions.Create(as("maria"), types.CreateDraftInput{})
	require.NoError(t, err)

	res, err := f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID:   s.ID,
		Filename:    "first take.mp4",
		ContentType: "video/mp4",
		Body:        strings.NewReader("frames"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Key, "sessions/"+s.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(res.Key, "-first_take.mp4"))
	assert.Equal(t, int64(6), res.Bytes)
	assert.Equal(t, []byte("frames"), f.bucket.objects[res.Key])
	assert.Equal(t, "video/mp4", f.bucket.ctypes[res.Key])
	assert.Equal(t, res.URL, res.Session.EvidentiaryBody.VideoURL)

	stored, err := f.sessions.Get(dbcAs("maria"), s.ID)
	require.NoError(t, err)
	assert.Equal(t, res.URL, stored.EvidentiaryBody.VideoURL)
}

func TestUploadRejectsDisallowedContentType(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.sessions.Create(as("maria"), types.CreateDraftInput{})
	require.NoError(t, err)

	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID:   s.ID,
		Filename:    "notes.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF"),
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	assert.Empty(t, f.bucket.objects)
}

func TestUploadAcceptsContentTypeParameters(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.sessions.Create(as("maria"), types.CreateDraftInput{})
	require.NoError(t, err)

	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID:   s.ID,
		Filename:    "clip.webm",
		ContentType: "Video/WebM; codecs=vp9",
		Body:        strings.NewReader("x"),
	})
	require.NoError(t, err)
}

func TestUploadEnforcesSizeLimit(t *testing.T) {
	f := newFixture(t, 4)
	s, err := f.sessions.Create(as("maria"), types.CreateDraftInput{})
	require.NoError(t, err)

	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID: s.ID, Filename: "a.mp4", ContentType: "video/mp4", Size: 10, Body: strings.NewReader("0123456789"),
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	assert.Empty(t, f.bucket.objects)

	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID: s.ID, Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("0123456789"),
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	assert.Empty(t, f.bucket.objects, "oversized object removed after streaming")
	assert.Len(t, f.bucket.deleted, 1)
}

func TestUploadRequiresOwnerAndLiveSession(t *testing.T) {
	f := newFixture(t, 0)
	s := f.deposited(t, "maria", nil)

	_, err := f.uploads.UploadSessionMedia(as("stranger"), UploadInput{
		SessionID: s.ID, Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("x"),
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidActor))

	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID: uuid.New(), Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("x"),
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeNotFound))

	_, err = f.sessions.Withdraw(as("maria"), types.TransitionInput{SessionID: s.ID})
	require.NoError(t, err)
	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID: s.ID, Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("x"),
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidTransition))
	assert.Empty(t, f.bucket.objects)
}

func TestUploadStorageFailureIsReported(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.sessions.Create(as("maria"), types.CreateDraftInput{})
	require.NoError(t, err)
	f.bucket.failWrite = errors.New("bucket unavailable")

	_, err = f.uploads.UploadSessionMedia(as("maria"), UploadInput{
		SessionID: s.ID, Filename: "a.mp4", ContentType: "video/mp4", Body: strings.NewReader("x"),
	})
	require.Error(t, err)
	stored, err := f.sessions.Get(dbcAs("maria"), s.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.EvidentiaryBody.VideoURL)
}

func TestMediaKeyAndSanitizeFilename(t *testing.T) {
	id := uuid.MustParse("7b1f7f0e-2c7b-4a57-9d4c-0f5c3f1d2e10")
	at := time.Unix(0, 1700000000123456789)
	assert.Equal(t, "sessions/7b1f7f0e-2c7b-4a57-9d4c-0f5c3f1d2e10/1700000000123456789-dance.mov", MediaKey(id, at, "dance.mov"))

	cases := map[string]string{
		"../../etc/passwd":      "passwd",
		`C:\videos\my clip.mp4`: "my_clip.mp4",
		"":                      "upload",
		"..":                    "upload",
		"ñandú.webm":            "_and_.webm",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
	assert.LessOrEqual(t, len(SanitizeFilename(strings.Repeat("a", 300)+".mp4")), 120)
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", NormalizeContentType(" VIDEO/MP4 "))
	assert.Equal(t, "video/quicktime", NormalizeContentType("video/quicktime; charset=binary"))
}
