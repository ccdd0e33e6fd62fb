package archive

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/gmr-archive-backend/internal/data/repos/testutil"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

func TestAuthorityVersionRepoRejectsDuplicateVersion(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewAuthorityVersionRepo(db, testutil.Logger(t))
	s := testutil.SeedDeposited(t, ctx, db, "user_av_1")
	dbc := dbctx.Context{Ctx: ctx}

	dup := s.AuthorityVersions[0]
	dup.ChangedBy = "user_av_1"
	dup.Timestamp = time.Now().UTC()
	if err := repo.Create(dbc, &dup); err == nil {
		t.Fatalf("expected unique violation for duplicate (session_id, version)")
	}

	highest, err := repo.MaxVersion(dbc, s.ID)
	if err != nil {
		t.Fatalf("MaxVersion: %v", err)
	}
	if highest != 1 {
		t.Fatalf("MaxVersion: want=1 got=%d", highest)
	}
	none, err := repo.MaxVersion(dbc, uuid.New())
	if err != nil || none != 0 {
		t.Fatalf("MaxVersion unknown session: got=%d err=%v", none, err)
	}

	v, err := repo.GetByVersion(dbc, s.ID, 1)
	if err != nil || v == nil {
		t.Fatalf("GetByVersion: v=%v err=%v", v, err)
	}
	if v.DerivativesPermission != types.DerivativesNo {
		t.Fatalf("default derivatives permission: %s", v.DerivativesPermission)
	}
	if missing, _ := repo.GetByVersion(dbc, s.ID, 9); missing != nil {
		t.Fatalf("expected nil for unknown version")
	}
}
