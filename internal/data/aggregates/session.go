package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/data/repos"
	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

const sessionTable = "session_record"

// autoReviewReason is recorded when deposit routes a sensitive claim to review.
const autoReviewReason = "community authority requires review"

type SessionAggregateDeps struct {
	Base BaseDeps

	Sessions    repos.SessionRepo
	Versions    repos.AuthorityVersionRepo
	Derivatives repos.DerivativeRepo
	Delegations repos.DelegationRepo

	NewID func() uuid.UUID
}

type sessionAggregate struct {
	deps SessionAggregateDeps
}

func NewSessionAggregate(deps SessionAggregateDeps) types.SessionAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.NewID == nil {
		deps.NewID = uuid.New
	}
	return &sessionAggregate{deps: deps}
}

func (a *sessionAggregate) Contract() domainagg.Contract {
	return domainagg.SessionAggregateContract
}

type accessRule int

const (
	ownerOnly accessRule = iota
	ownerOrDelegate
	// readers admits anyone who may view the session; others get not found.
	readers
)

// snapshot is what the row looked like when it was locked.
type snapshot struct {
	status      types.SessionStatus
	version     int
	versions    int
	derivatives int
}

func snapshotOf(s *types.Session) snapshot {
	return snapshot{
		status:      s.Status,
		version:     s.CurrentAuthorityVersion,
		versions:    len(s.AuthorityVersions),
		derivatives: len(s.Derivatives),
	}
}

// writeResult collects what a committed write added, for hooks.
type writeResult struct {
	appended []types.AuthorityVersion
	recorded []types.Derivative
}

func (a *sessionAggregate) emit(res writeResult) {
	for _, v := range res.appended {
		a.deps.Base.Hooks.IncLedgerAppend(v.Delegated)
	}
	for _, d := range res.recorded {
		a.deps.Base.Hooks.IncDerivative(string(d.Type))
	}
}

func (a *sessionAggregate) ready(op string) error {
	if a.deps.Sessions == nil || a.deps.Versions == nil || a.deps.Derivatives == nil || a.deps.Delegations == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "session aggregate repos not configured", nil)
	}
	return nil
}

// mutate locks the session, checks the actor, applies fn to the in-memory
// aggregate and persists the difference under a compare-and-set on the
// status and current authority version it locked.
func (a *sessionAggregate) mutate(
	ctx context.Context,
	op string,
	sessionID uuid.UUID,
	actor string,
	rule accessRule,
	fn func(dbc dbctx.Context, s *types.Session, delegated bool) error,
) (*types.Session, error) {
	if err := a.ready(op); err != nil {
		return nil, err
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing actor", nil)
	}
	if sessionID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}

	var (
		out *types.Session
		res writeResult
	)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		res = writeResult{}
		s, err := a.deps.Sessions.LockByID(dbc, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("session not found: %s", sessionID), nil)
			}
			return err
		}
		delegated := false
		if !s.IsOwner(actor) {
			switch rule {
			case ownerOnly:
				return invalidActor(op, actor)
			case ownerOrDelegate:
				grant, err := a.deps.Delegations.GetActive(dbc, s.ID, actor)
				if err != nil {
					return err
				}
				if grant == nil {
					return invalidActor(op, actor)
				}
				delegated = true
			case readers:
				grant, err := a.deps.Delegations.GetActive(dbc, s.ID, actor)
				if err != nil {
					return err
				}
				delegated = grant != nil
				if !s.ReadableBy(actor, delegated) {
					return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("session not found: %s", sessionID), nil)
				}
			}
		}

		prev := snapshotOf(s)
		if err := fn(dbc, s, delegated); err != nil {
			return err
		}
		added, err := a.persist(dbc, op, s, prev)
		if err != nil {
			return err
		}
		res = added
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.emit(res)
	return out, nil
}

// persist writes new ledger and derivative rows and then moves the session
// row forward. Ledger rows are only ever inserted.
func (a *sessionAggregate) persist(dbc dbctx.Context, op string, s *types.Session, prev snapshot) (writeResult, error) {
	var res writeResult
	if err := s.CheckLedger(); err != nil {
		return res, err
	}
	for i := prev.versions; i < len(s.AuthorityVersions); i++ {
		v := s.AuthorityVersions[i]
		if err := a.deps.Versions.Create(dbc, &v); err != nil {
			if isUniqueViolation(err) {
				return res, appendConflict(op, prev.version)
			}
			return res, err
		}
		res.appended = append(res.appended, v)
	}
	for i := prev.derivatives; i < len(s.Derivatives); i++ {
		d := s.Derivatives[i]
		if err := a.deps.Derivatives.Create(dbc, &d); err != nil {
			return res, err
		}
		res.recorded = append(res.recorded, d)
	}

	ok, err := a.deps.Base.CASGuard.UpdateWhere(dbc, sessionTable, s.ID, map[string]any{
		"status":                    string(prev.status),
		"current_authority_version": prev.version,
	}, sessionColumns(s))
	if err != nil {
		return res, err
	}
	if !ok {
		if len(res.appended) > 0 {
			return res, appendConflict(op, prev.version)
		}
		return res, RequireCASSuccess(false, "session changed concurrently")
	}
	return res, nil
}

func (a *sessionAggregate) CreateDraft(ctx context.Context, in types.CreateDraftInput) (*types.Session, error) {
	const op = "Archive.Session.CreateDraft"
	if err := a.ready(op); err != nil {
		return nil, err
	}
	at := writeTime(in.At)
	var (
		out *types.Session
		res writeResult
	)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		res = writeResult{}
		s, err := types.NewDraft(a.deps.NewID(), in.ContributorID, at)
		if err != nil {
			return err
		}
		if err := s.UpdateDescriptive(in.Descriptive, at); err != nil {
			return err
		}
		if err := s.AttachBodies(in.Bodies, at); err != nil {
			return err
		}
		if !in.Authority.Empty() {
			if _, err := s.AppendVersion(s.ChangeFromPatch(s.ContributorID, false, 0, in.Authority), at); err != nil {
				return err
			}
		}
		if err := a.deps.Sessions.Create(dbc, s); err != nil {
			return err
		}
		for i := range s.AuthorityVersions {
			v := s.AuthorityVersions[i]
			if err := a.deps.Versions.Create(dbc, &v); err != nil {
				return err
			}
			res.appended = append(res.appended, v)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.emit(res)
	return out, nil
}

func (a *sessionAggregate) UpdateSession(ctx context.Context, in types.UpdateSessionInput) (*types.Session, error) {
	const op = "Archive.Session.UpdateSession"
	at := writeTime(in.At)
	return a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOnly, func(_ dbctx.Context, s *types.Session, _ bool) error {
		if err := s.UpdateDescriptive(in.Descriptive, at); err != nil {
			return err
		}
		if err := s.AttachBodies(in.Bodies, at); err != nil {
			return err
		}
		if in.Authority.Empty() {
			return nil
		}
		_, err := s.AppendVersion(s.ChangeFromPatch(strings.TrimSpace(in.ActorID), false, in.ExpectedVersion, in.Authority), at)
		return err
	})
}

func (a *sessionAggregate) Deposit(ctx context.Context, in types.DepositInput) (*types.Session, error) {
	const op = "Archive.Session.Deposit"
	at := writeTime(in.At)
	return a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOnly, func(_ dbctx.Context, s *types.Session, _ bool) error {
		if err := s.Deposit(in.Authority, at); err != nil {
			return err
		}
		if s.NeedsReview() {
			return s.RequestReview(autoReviewReason, at)
		}
		return nil
	})
}

func (a *sessionAggregate) RequestReview(ctx context.Context, in types.ReviewInput) (*types.Session, error) {
	const op = "Archive.Session.RequestReview"
	at := writeTime(in.At)
	return a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOrDelegate, func(_ dbctx.Context, s *types.Session, _ bool) error {
		return s.RequestReview(in.Reason, at)
	})
}

func (a *sessionAggregate) ResolveReview(ctx context.Context, in types.TransitionInput) (*types.Session, error) {
	const op = "Archive.Session.ResolveReview"
	at := writeTime(in.At)
	return a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOrDelegate, func(_ dbctx.Context, s *types.Session, _ bool) error {
		return s.ResolveReview(at)
	})
}

func (a *sessionAggregate) Withdraw(ctx context.Context, in types.TransitionInput) (*types.Session, error) {
	const op = "Archive.Session.Withdraw"
	at := writeTime(in.At)
	return a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOnly, func(_ dbctx.Context, s *types.Session, _ bool) error {
		return s.Withdraw(at)
	})
}

func (a *sessionAggregate) AppendAuthorityVersion(ctx context.Context, in types.AppendAuthorityInput) (types.AuthorityVersion, error) {
	const op = "Archive.Session.AppendAuthorityVersion"
	if in.Patch.Empty() {
		return types.AuthorityVersion{}, domainagg.NewError(domainagg.CodeValidation, op, "no authority fields supplied", nil)
	}
	at := writeTime(in.At)
	var out types.AuthorityVersion
	_, err := a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOrDelegate, func(_ dbctx.Context, s *types.Session, delegated bool) error {
		v, err := s.AppendVersion(s.ChangeFromPatch(strings.TrimSpace(in.ActorID), delegated, in.ExpectedVersion, in.Patch), at)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return types.AuthorityVersion{}, err
	}
	return out, nil
}

func (a *sessionAggregate) RecordDerivative(ctx context.Context, in types.RecordDerivativeInput) (types.Derivative, error) {
	const op = "Archive.Session.RecordDerivative"
	at := writeTime(in.At)
	var out types.Derivative
	_, err := a.mutate(ctx, op, in.SessionID, in.ActorID, readers, func(_ dbctx.Context, s *types.Session, _ bool) error {
		d, err := s.RecordDerivative(types.DerivativeInput{
			ID:               a.deps.NewID(),
			Type:             in.Type,
			CreatedBy:        strings.TrimSpace(in.ActorID),
			InputDescription: in.InputDescription,
			OutputURL:        in.OutputURL,
			LinkedSessions:   in.LinkedSessions,
			CommunityScope:   in.CommunityScope,
		}, at)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return types.Derivative{}, err
	}
	return out, nil
}

func (a *sessionAggregate) GrantDelegation(ctx context.Context, in types.DelegationInput) (types.AuthorityDelegation, error) {
	const op = "Archive.Session.GrantDelegation"
	at := writeTime(in.At)
	var out types.AuthorityDelegation
	_, err := a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOnly, func(dbc dbctx.Context, s *types.Session, _ bool) error {
		existing, err := a.deps.Delegations.GetActive(dbc, s.ID, in.DelegateID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = *existing
			return nil
		}
		d, err := s.NewDelegation(a.deps.NewID(), in.ActorID, in.DelegateID, at)
		if err != nil {
			return err
		}
		if err := a.deps.Delegations.Create(dbc, &d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return types.AuthorityDelegation{}, err
	}
	return out, nil
}

func (a *sessionAggregate) RevokeDelegation(ctx context.Context, in types.DelegationInput) error {
	const op = "Archive.Session.RevokeDelegation"
	at := writeTime(in.At)
	_, err := a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOnly, func(dbc dbctx.Context, s *types.Session, _ bool) error {
		n, err := a.deps.Delegations.Revoke(dbc, s.ID, in.DelegateID, at)
		if err != nil {
			return err
		}
		if n == 0 {
			return domainagg.NewError(domainagg.CodeNotFound, op, "no active delegation for delegate", nil)
		}
		return nil
	})
	return err
}

func (a *sessionAggregate) AttachMedia(ctx context.Context, in types.AttachMediaInput) (*types.Session, error) {
	const op = "Archive.Session.AttachMedia"
	at := writeTime(in.At)
	return a.mutate(ctx, op, in.SessionID, in.ActorID, ownerOnly, func(_ dbctx.Context, s *types.Session, _ bool) error {
		return s.SetEvidentiaryMedia(in.Locator, at)
	})
}

func sessionColumns(s *types.Session) map[string]any {
	return map[string]any{
		"status":                     string(s.Status),
		"review_reason":              s.ReviewReason,
		"provenance_role":            string(s.Provenance.Role),
		"provenance_sentence":        s.Provenance.Sentence,
		"intent_purposes":            s.Intent.Purposes,
		"intent_sentence":            s.Intent.Sentence,
		"context_narrative":          s.Context.Narrative,
		"context_setting":            string(s.Context.Setting),
		"context_function":           string(s.Context.Function),
		"context_constraints":        s.Context.Constraints,
		"context_future_note":        s.Context.FutureNote,
		"authority_type":             string(s.CommunityAuthority.Type),
		"authority_restrictions":     s.CommunityAuthority.Restrictions,
		"apparatus_device":           s.Apparatus.Device,
		"apparatus_browser":          s.Apparatus.Browser,
		"apparatus_camera_position":  string(s.Apparatus.CameraPosition),
		"apparatus_body_visibility":  string(s.Apparatus.BodyVisibility),
		"apparatus_notes":            s.Apparatus.Notes,
		"evidence_video_url":         s.EvidentiaryBody.VideoURL,
		"evidence_audio_url":         s.EvidentiaryBody.AudioURL,
		"computable_pose_data_url":   s.ComputableBody.PoseDataURL,
		"computable_frame_count":     s.ComputableBody.FrameCount,
		"uncertainty_flags":          s.Uncertainty.Flags,
		"uncertainty_confidence":     s.Uncertainty.Confidence,
		"uncertainty_confidence_set": s.Uncertainty.ConfidenceSet,
		"uncertainty_notes":          s.Uncertainty.Notes,
		"interpretive_seed":          s.InterpretiveSeed,
		"current_authority_version":  s.CurrentAuthorityVersion,
		"updated_at":                 s.UpdatedAt,
	}
}

func writeTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}

func invalidActor(op, actor string) error {
	return domainagg.NewError(domainagg.CodeInvalidActor, op,
		fmt.Sprintf("actor %q is neither the contributor nor a delegate", actor), nil)
}

func appendConflict(op string, expected int) error {
	return domainagg.NewError(domainagg.CodeAppendConflict, op,
		fmt.Sprintf("authority ledger moved past version %d", expected), nil)
}
