package archive

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

// AuthorityVersionRepo is insert-only. There is deliberately no update or
// delete method.
type AuthorityVersionRepo interface {
	Create(dbc dbctx.Context, v *types.AuthorityVersion) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]types.AuthorityVersion, error)
	GetByVersion(dbc dbctx.Context, sessionID uuid.UUID, version int) (*types.AuthorityVersion, error)
	MaxVersion(dbc dbctx.Context, sessionID uuid.UUID) (int, error)
}

type authorityVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuthorityVersionRepo(db *gorm.DB, baseLog *logger.Logger) AuthorityVersionRepo {
	return &authorityVersionRepo{db: db, log: baseLog.With("repo", "AuthorityVersionRepo")}
}

func (r *authorityVersionRepo) Create(dbc dbctx.Context, v *types.AuthorityVersion) error {
	if v == nil || v.SessionID == uuid.Nil || v.Version < 1 {
		return fmt.Errorf("invalid authority version")
	}
	return dbc.DB(r.db).Create(v).Error
}

func (r *authorityVersionRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]types.AuthorityVersion, error) {
	out := []types.AuthorityVersion{}
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("session_id = ?", sessionID).
		Order("version ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *authorityVersionRepo) GetByVersion(dbc dbctx.Context, sessionID uuid.UUID, version int) (*types.AuthorityVersion, error) {
	if sessionID == uuid.Nil || version < 1 {
		return nil, nil
	}
	var out []types.AuthorityVersion
	if err := dbc.DB(r.db).
		Where("session_id = ? AND version = ?", sessionID, version).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *authorityVersionRepo) MaxVersion(dbc dbctx.Context, sessionID uuid.UUID) (int, error) {
	var highest int
	row := dbc.DB(r.db).
		Model(&types.AuthorityVersion{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(version), 0)").
		Row()
	if err := row.Scan(&highest); err != nil {
		return 0, err
	}
	return highest, nil
}
