package archive

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
)

// SessionAggregate persists session mutations. Every write runs in its own
// transaction with the session row locked, so ledger appends are
// compare-and-append against the stored current version.
type SessionAggregate interface {
	aggregates.Aggregate

	CreateDraft(ctx context.Context, in CreateDraftInput) (*Session, error)
	UpdateSession(ctx context.Context, in UpdateSessionInput) (*Session, error)
	Deposit(ctx context.Context, in DepositInput) (*Session, error)
	RequestReview(ctx context.Context, in ReviewInput) (*Session, error)
	ResolveReview(ctx context.Context, in TransitionInput) (*Session, error)
	Withdraw(ctx context.Context, in TransitionInput) (*Session, error)
	AppendAuthorityVersion(ctx context.Context, in AppendAuthorityInput) (AuthorityVersion, error)
	RecordDerivative(ctx context.Context, in RecordDerivativeInput) (Derivative, error)
	GrantDelegation(ctx context.Context, in DelegationInput) (AuthorityDelegation, error)
	RevokeDelegation(ctx context.Context, in DelegationInput) error
	AttachMedia(ctx context.Context, in AttachMediaInput) (*Session, error)
}

type CreateDraftInput struct {
	ContributorID string
	Descriptive   DescriptivePatch
	Bodies        BodiesPatch
	// Authority, when non-empty, is appended as version 1.
	Authority AuthorityPatch
	At        time.Time
}

type UpdateSessionInput struct {
	SessionID   uuid.UUID
	ActorID     string
	Descriptive DescriptivePatch
	Bodies      BodiesPatch
	// Authority fields never overwrite the ledger in place; a non-empty patch
	// appends a new version.
	Authority       AuthorityPatch
	ExpectedVersion int
	At              time.Time
}

type DepositInput struct {
	SessionID uuid.UUID
	ActorID   string
	Authority *AuthorityPatch
	At        time.Time
}

type ReviewInput struct {
	SessionID uuid.UUID
	ActorID   string
	Reason    string
	At        time.Time
}

type TransitionInput struct {
	SessionID uuid.UUID
	ActorID   string
	At        time.Time
}

type AppendAuthorityInput struct {
	SessionID       uuid.UUID
	ActorID         string
	ExpectedVersion int
	Patch           AuthorityPatch
	At              time.Time
}

type RecordDerivativeInput struct {
	SessionID        uuid.UUID
	ActorID          string
	Type             DerivativeType
	InputDescription string
	OutputURL        string
	LinkedSessions   []string
	CommunityScope   bool
	At               time.Time
}

type DelegationInput struct {
	SessionID  uuid.UUID
	ActorID    string
	DelegateID string
	At         time.Time
}

type AttachMediaInput struct {
	SessionID uuid.UUID
	ActorID   string
	Locator   string
	At        time.Time
}
