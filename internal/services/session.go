package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/data/repos"
	repoarchive "github.com/yungbote/gmr-archive-backend/internal/data/repos/archive"
	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/ctxutil"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

// SessionService resolves the caller from request data and routes writes
// through the session aggregate. Reads go straight to the table repos.
type SessionService interface {
	Create(ctx context.Context, in types.CreateDraftInput) (*types.Session, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	List(dbc dbctx.Context, status types.SessionStatus, limit int) ([]*types.Session, error)
	Browse(dbc dbctx.Context, tier types.VisibilityTier, limit int) ([]*types.Session, error)
	Update(ctx context.Context, in types.UpdateSessionInput) (*types.Session, error)
	Deposit(ctx context.Context, in types.DepositInput) (*types.Session, error)
	RequestReview(ctx context.Context, in types.ReviewInput) (*types.Session, error)
	ResolveReview(ctx context.Context, in types.TransitionInput) (*types.Session, error)
	Withdraw(ctx context.Context, in types.TransitionInput) (*types.Session, error)

	AuthorityHistory(dbc dbctx.Context, id uuid.UUID) ([]types.AuthorityVersion, error)
	AuthorityVersion(dbc dbctx.Context, id uuid.UUID, version int) (types.AuthorityVersion, error)
	AppendAuthority(ctx context.Context, in types.AppendAuthorityInput) (types.AuthorityVersion, error)

	Derivatives(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	RecordDerivative(ctx context.Context, in types.RecordDerivativeInput) (types.Derivative, error)

	Delegations(dbc dbctx.Context, id uuid.UUID) ([]types.AuthorityDelegation, error)
	GrantDelegation(ctx context.Context, in types.DelegationInput) (types.AuthorityDelegation, error)
	RevokeDelegation(ctx context.Context, in types.DelegationInput) error
}

type sessionService struct {
	db          *gorm.DB
	log         *logger.Logger
	aggregate   types.SessionAggregate
	sessions    repos.SessionRepo
	delegations repos.DelegationRepo
}

func NewSessionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	aggregate types.SessionAggregate,
	sessions repos.SessionRepo,
	delegations repos.DelegationRepo,
) SessionService {
	return &sessionService{
		db:          db,
		log:         baseLog.With("service", "SessionService"),
		aggregate:   aggregate,
		sessions:    sessions,
		delegations: delegations,
	}
}

func callerFrom(ctx context.Context) (string, error) {
	actor := strings.TrimSpace(ctxutil.ContributorID(ctx))
	if actor == "" {
		return "", ErrUnauthorized
	}
	return actor, nil
}

func (ss *sessionService) Create(ctx context.Context, in types.CreateDraftInput) (*types.Session, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.ContributorID = actor
	s, err := ss.aggregate.CreateDraft(ctx, in)
	if err != nil {
		ss.log.Warn("create draft failed", "contributor_id", actor, "error", err)
		return nil, err
	}
	ss.log.Info("draft created", "session_id", s.ID, "contributor_id", actor, "authority_version", s.CurrentAuthorityVersion)
	return s, nil
}

// Get returns the session when the caller may read it. Unreadable sessions
// are reported as not found.
func (ss *sessionService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	actor, err := callerFrom(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	s, err := ss.sessions.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, sessionNotFound(id)
	}
	delegated, err := ss.isDelegate(dbc, s, actor)
	if err != nil {
		return nil, err
	}
	if !s.ReadableBy(actor, delegated) {
		return nil, sessionNotFound(id)
	}
	return s, nil
}

func (ss *sessionService) isDelegate(dbc dbctx.Context, s *types.Session, actor string) (bool, error) {
	if s.IsOwner(actor) {
		return false, nil
	}
	grant, err := ss.delegations.GetActive(dbc, s.ID, actor)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

// List returns the caller's own sessions plus those they hold an active
// delegation on, most recently updated first.
func (ss *sessionService) List(dbc dbctx.Context, status types.SessionStatus, limit int) ([]*types.Session, error) {
	actor, err := callerFrom(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, domainagg.NewError(domainagg.CodeValidation, "Archive.Session.List", fmt.Sprintf("invalid status %q", status), nil)
	}
	if limit <= 0 {
		limit = repoarchive.DefaultListLimit
	}
	if limit > repoarchive.MaxListLimit {
		limit = repoarchive.MaxListLimit
	}

	own, err := ss.sessions.ListByContributor(dbc, actor, status, limit)
	if err != nil {
		return nil, err
	}
	ids, err := ss.delegations.ListActiveSessionIDs(dbc, actor)
	if err != nil {
		return nil, err
	}
	delegated, err := ss.sessions.ListByIDs(dbc, ids, status, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(own)+len(delegated))
	out := make([]*types.Session, 0, len(own)+len(delegated))
	for _, s := range append(own, delegated...) {
		if s == nil || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Browse lists the archive: every deposited record whose computed data is
// shared with the community or the public. An empty tier means both.
func (ss *sessionService) Browse(dbc dbctx.Context, tier types.VisibilityTier, limit int) ([]*types.Session, error) {
	const op = "Archive.Session.Browse"
	actor, err := callerFrom(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	var tiers []types.VisibilityTier
	switch tier {
	case "":
		tiers = []types.VisibilityTier{types.VisibilityCommunity, types.VisibilityPublic}
	case types.VisibilityCommunity, types.VisibilityPublic:
		tiers = []types.VisibilityTier{tier}
	default:
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("tier %q cannot be browsed", tier), nil)
	}

	list, err := ss.sessions.ListByComputedVisibility(dbc, tiers, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Session, 0, len(list))
	for _, s := range list {
		if s != nil && s.ReadableBy(actor, false) {
			out = append(out, s)
		}
	}
	ss.log.Debug("archive browsed", "actor", actor, "tier", string(tier), "count", len(out))
	return out, nil
}

func (ss *sessionService) Update(ctx context.Context, in types.UpdateSessionInput) (*types.Session, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.ActorID = actor
	return ss.aggregate.UpdateSession(ctx, in)
}

func (ss *sessionService) Deposit(ctx context.Context, in types.DepositInput) (*types.Session, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.ActorID = actor
	s, err := ss.aggregate.Deposit(ctx, in)
	if err != nil {
		ss.log.Warn("deposit rejected", "session_id", in.SessionID, "contributor_id", actor, "error", err)
		return nil, err
	}
	ss.log.Info("session deposited", "session_id", s.ID, "status", s.Status, "authority_version", s.CurrentAuthorityVersion)
	return s, nil
}

func (ss *sessionService) RequestReview(ctx context.Context, in types.ReviewInput) (*types.Session, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.ActorID = actor
	return ss.aggregate.RequestReview(ctx, in)
}

func (ss *sessionService) ResolveReview(ctx context.Context, in types.TransitionInput) (*types.Session, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.ActorID = actor
	return ss.aggregate.ResolveReview(ctx, in)
}

func (ss *sessionService) Withdraw(ctx context.Context, in types.TransitionInput) (*types.Session, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.ActorID = actor
	s, err := ss.aggregate.Withdraw(ctx, in)
	if err != nil {
		return nil, err
	}
	ss.log.Info("session withdrawn", "session_id", s.ID, "contributor_id", actor)
	return s, nil
}

func (ss *sessionService) AuthorityHistory(dbc dbctx.Context, id uuid.UUID) ([]types.AuthorityVersion, error) {
	s, err := ss.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	return s.AuthorityHistory(), nil
}

func (ss *sessionService) AuthorityVersion(dbc dbctx.Context, id uuid.UUID, version int) (types.AuthorityVersion, error) {
	s, err := ss.Get(dbc, id)
	if err != nil {
		return types.AuthorityVersion{}, err
	}
	return s.VersionAt(version)
}

func (ss *sessionService) AppendAuthority(ctx context.Context, in types.AppendAuthorityInput) (types.AuthorityVersion, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return types.AuthorityVersion{}, err
	}
	in.ActorID = actor
	v, err := ss.aggregate.AppendAuthorityVersion(ctx, in)
	if err != nil {
		if domainagg.IsCode(err, domainagg.CodeAppendConflict) {
			ss.log.Info("authority append lost race", "session_id", in.SessionID, "expected_version", in.ExpectedVersion)
		}
		return types.AuthorityVersion{}, err
	}
	ss.log.Info("authority version appended",
		"session_id", in.SessionID,
		"version", v.Version,
		"changed_by", v.ChangedBy,
		"delegated", v.Delegated,
	)
	return v, nil
}

// Derivatives returns the readable session with its derivatives loaded so the
// caller can compute staleness against the current pointer.
func (ss *sessionService) Derivatives(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	return ss.Get(dbc, id)
}

func (ss *sessionService) RecordDerivative(ctx context.Context, in types.RecordDerivativeInput) (types.Derivative, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return types.Derivative{}, err
	}
	in.ActorID = actor
	d, err := ss.aggregate.RecordDerivative(ctx, in)
	if err != nil {
		return types.Derivative{}, err
	}
	ss.log.Info("derivative recorded",
		"session_id", d.SessionID,
		"derivative_id", d.ID,
		"type", d.Type,
		"authority_version", d.AuthorityVersionUsed,
	)
	return d, nil
}

// Delegations lists active grants. Only the owner sees them.
func (ss *sessionService) Delegations(dbc dbctx.Context, id uuid.UUID) ([]types.AuthorityDelegation, error) {
	actor, err := callerFrom(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	s, err := ss.sessions.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, sessionNotFound(id)
	}
	if !s.IsOwner(actor) {
		return nil, domainagg.NewError(domainagg.CodeInvalidActor, "Archive.Delegation.List", "only the contributor may list delegates", nil)
	}
	return ss.delegations.ListActiveBySession(dbc, id)
}

func (ss *sessionService) GrantDelegation(ctx context.Context, in types.DelegationInput) (types.AuthorityDelegation, error) {
	actor, err := callerFrom(ctx)
	if err != nil {
		return types.AuthorityDelegation{}, err
	}
	in.ActorID = actor
	d, err := ss.aggregate.GrantDelegation(ctx, in)
	if err != nil {
		return types.AuthorityDelegation{}, err
	}
	ss.log.Info("delegation granted", "session_id", d.SessionID, "delegate_id", d.DelegateID)
	return d, nil
}

func (ss *sessionService) RevokeDelegation(ctx context.Context, in types.DelegationInput) error {
	actor, err := callerFrom(ctx)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := ss.aggregate.RevokeDelegation(ctx, in); err != nil {
		return err
	}
	ss.log.Info("delegation revoked", "session_id", in.SessionID, "delegate_id", in.DelegateID)
	return nil
}

func sessionNotFound(id uuid.UUID) error {
	return domainagg.NewError(domainagg.CodeNotFound, "Archive.Session.Get", fmt.Sprintf("session not found: %s", id), nil)
}
