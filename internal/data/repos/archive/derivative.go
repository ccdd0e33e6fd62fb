package archive

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

type DerivativeRepo interface {
	Create(dbc dbctx.Context, d *types.Derivative) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Derivative, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]types.Derivative, error)
}

type derivativeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDerivativeRepo(db *gorm.DB, baseLog *logger.Logger) DerivativeRepo {
	return &derivativeRepo{db: db, log: baseLog.With("repo", "DerivativeRepo")}
}

func (r *derivativeRepo) Create(dbc dbctx.Context, d *types.Derivative) error {
	if d == nil || d.ID == uuid.Nil || d.SessionID == uuid.Nil {
		return fmt.Errorf("invalid derivative")
	}
	return dbc.DB(r.db).Create(d).Error
}

func (r *derivativeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Derivative, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []types.Derivative
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *derivativeRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]types.Derivative, error) {
	out := []types.Derivative{}
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
