package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

type DelegationRepo interface {
	Create(dbc dbctx.Context, d *types.AuthorityDelegation) error
	GetActive(dbc dbctx.Context, sessionID uuid.UUID, delegateID string) (*types.AuthorityDelegation, error)
	ListActiveBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]types.AuthorityDelegation, error)
	ListActiveSessionIDs(dbc dbctx.Context, delegateID string) ([]uuid.UUID, error)
	Revoke(dbc dbctx.Context, sessionID uuid.UUID, delegateID string, at time.Time) (int64, error)
}

type delegationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDelegationRepo(db *gorm.DB, baseLog *logger.Logger) DelegationRepo {
	return &delegationRepo{db: db, log: baseLog.With("repo", "DelegationRepo")}
}

func (r *delegationRepo) Create(dbc dbctx.Context, d *types.AuthorityDelegation) error {
	if d == nil || d.ID == uuid.Nil || d.SessionID == uuid.Nil {
		return fmt.Errorf("invalid delegation")
	}
	return dbc.DB(r.db).Create(d).Error
}

func (r *delegationRepo) GetActive(dbc dbctx.Context, sessionID uuid.UUID, delegateID string) (*types.AuthorityDelegation, error) {
	delegateID = strings.TrimSpace(delegateID)
	if sessionID == uuid.Nil || delegateID == "" {
		return nil, nil
	}
	var out []types.AuthorityDelegation
	if err := dbc.DB(r.db).
		Where("session_id = ? AND delegate_id = ? AND revoked_at IS NULL", sessionID, delegateID).
		Order("granted_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *delegationRepo) ListActiveBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]types.AuthorityDelegation, error) {
	out := []types.AuthorityDelegation{}
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Order("granted_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *delegationRepo) ListActiveSessionIDs(dbc dbctx.Context, delegateID string) ([]uuid.UUID, error) {
	out := []uuid.UUID{}
	delegateID = strings.TrimSpace(delegateID)
	if delegateID == "" {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Model(&types.AuthorityDelegation{}).
		Where("delegate_id = ? AND revoked_at IS NULL", delegateID).
		Distinct().
		Pluck("session_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Revoke stamps revoked_at on every active grant for the pair and returns how
// many rows changed.
func (r *delegationRepo) Revoke(dbc dbctx.Context, sessionID uuid.UUID, delegateID string, at time.Time) (int64, error) {
	delegateID = strings.TrimSpace(delegateID)
	if sessionID == uuid.Nil || delegateID == "" {
		return 0, fmt.Errorf("missing session or delegate id")
	}
	res := dbc.DB(r.db).
		Model(&types.AuthorityDelegation{}).
		Where("session_id = ? AND delegate_id = ? AND revoked_at IS NULL", sessionID, delegateID).
		Update("revoked_at", at.UTC())
	return res.RowsAffected, res.Error
}
