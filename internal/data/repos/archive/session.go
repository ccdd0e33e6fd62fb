package archive

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type SessionRepo interface {
	Create(dbc dbctx.Context, s *types.Session) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	ListByContributor(dbc dbctx.Context, contributorID string, status types.SessionStatus, limit int) ([]*types.Session, error)
	ListByIDs(dbc dbctx.Context, ids []uuid.UUID, status types.SessionStatus, limit int) ([]*types.Session, error)
	ListByComputedVisibility(dbc dbctx.Context, tiers []types.VisibilityTier, limit int) ([]*types.Session, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

// Create inserts the session row only. Ledger and derivative rows are written
// by their own repos.
func (r *sessionRepo) Create(dbc dbctx.Context, s *types.Session) error {
	if s == nil || s.ID == uuid.Nil {
		return fmt.Errorf("missing session")
	}
	return dbc.DB(r.db).Omit(clause.Associations).Create(s).Error
}

// GetByID returns the hydrated session, or nil when it does not exist.
func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Session
	err := dbc.DB(r.db).
		Preload("AuthorityVersions", func(db *gorm.DB) *gorm.DB { return db.Order("version ASC") }).
		Preload("Derivatives", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

// LockByID takes a row lock on the session and then loads its children. It
// must run inside a transaction.
func (r *sessionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID required dbc.Tx")
	}
	tx := dbc.Tx.WithContext(dbc.Ctx)
	var out types.Session
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("session_id = ?", id).Order("version ASC").Find(&out.AuthorityVersions).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("session_id = ?", id).Order("seq ASC").Find(&out.Derivatives).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) ListByContributor(dbc dbctx.Context, contributorID string, status types.SessionStatus, limit int) ([]*types.Session, error) {
	out := []*types.Session{}
	contributorID = strings.TrimSpace(contributorID)
	if contributorID == "" {
		return out, nil
	}
	q := r.listQuery(dbc, status, limit).Where("contributor_id = ?", contributorID)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByIDs is used for sessions a delegate holds grants on.
func (r *sessionRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID, status types.SessionStatus, limit int) ([]*types.Session, error) {
	out := []*types.Session{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.listQuery(dbc, status, limit).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByComputedVisibility returns deposited or in-review sessions whose
// current authority version grants one of tiers for computed data.
func (r *sessionRepo) ListByComputedVisibility(dbc dbctx.Context, tiers []types.VisibilityTier, limit int) ([]*types.Session, error) {
	out := []*types.Session{}
	if len(tiers) == 0 {
		return out, nil
	}
	raw := make([]string, 0, len(tiers))
	for _, t := range tiers {
		raw = append(raw, string(t))
	}
	q := r.listQuery(dbc, "", limit).
		Where("status IN ?", []string{string(types.StatusDeposited), string(types.StatusReview)}).
		Where(`EXISTS (SELECT 1 FROM authority_version av
			WHERE av.session_id = session_record.id
			AND av.version = session_record.current_authority_version
			AND av.computed_visibility IN ?)`, raw)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) listQuery(dbc dbctx.Context, status types.SessionStatus, limit int) *gorm.DB {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	q := dbc.DB(r.db).
		Preload("AuthorityVersions", func(db *gorm.DB) *gorm.DB { return db.Order("version ASC") }).
		Order("updated_at DESC").
		Order("id ASC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}
