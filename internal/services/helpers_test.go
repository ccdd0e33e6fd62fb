package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/yungbote/gmr-archive-backend/internal/data/aggregates"
	"github.com/yungbote/gmr-archive-backend/internal/data/repos"
	repotest "github.com/yungbote/gmr-archive-backend/internal/data/repos/testutil"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/ctxutil"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/platform/gcp"
)

type fixture struct {
	sessions SessionService
	uploads  UploadService
	bucket   *fakeBucket
	repos    repos.Set
	agg      types.SessionAggregate
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	agg := aggregates.NewSessionAggregate(aggregates.SessionAggregateDeps{
		Base:        aggregates.BaseDeps{DB: db, Log: log},
		Sessions:    set.Sessions,
		Versions:    set.AuthorityVersions,
		Derivatives: set.Derivatives,
		Delegations: set.Delegations,
	})
	bucket := newFakeBucket()
	return &fixture{
		sessions: NewSessionService(db, log, agg, set.Sessions, set.Delegations),
		uploads:  NewUploadService(log, bucket, set.Sessions, agg, nil, maxBytes),
		bucket:   bucket,
		repos:    set,
		agg:      agg,
	}
}

func as(actor string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{ContributorID: actor})
}

func dbcAs(actor string) dbctx.Context {
	return dbctx.Context{Ctx: as(actor)}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) deposited(t *testing.T, owner string, authority *types.AuthorityPatch) *types.Session {
	t.Helper()
	s, err := f.sessions.Create(as(owner), types.CreateDraftInput{Descriptive: repotest.CompleteDescriptive()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s, err = f.sessions.Deposit(as(owner), types.DepositInput{SessionID: s.ID, Authority: authority})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return s
}

type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	ctypes    map[string]string
	failWrite error
	deleted   []string
}

var _ gcp.BucketService = (*fakeBucket)(nil)

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, ctypes: map[string]string{}}
}

func (b *fakeBucket) UploadFile(_ dbctx.Context, key string, file io.Reader, contentType string) error {
	if b.failWrite != nil {
		return b.failWrite
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.ctypes[key] = contentType
	return nil
}

func (b *fakeBucket) DeleteFile(_ dbctx.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBucket) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBucket) GetObjectAttrs(_ context.Context, key string) (*gcp.ObjectAttrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return &gcp.ObjectAttrs{Size: int64(len(data)), ContentType: b.ctypes[key]}, nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
	return "https://storage.googleapis.com/archive-media/" + key
}
