package archive

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthorityDelegation grants a second identity the right to append authority
// versions on a contributor's behalf.
type AuthorityDelegation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_authority_delegation_session_delegate,priority:1" json:"session_id"`
	DelegateID string     `gorm:"column:delegate_id;not null;index:idx_authority_delegation_session_delegate,priority:2" json:"delegate_id"`
	GrantedBy  string     `gorm:"column:granted_by;not null" json:"granted_by"`
	GrantedAt  time.Time  `gorm:"column:granted_at;not null" json:"granted_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at;index" json:"revoked_at,omitempty"`
}

func (AuthorityDelegation) TableName() string { return "authority_delegation" }

func (d AuthorityDelegation) Active() bool { return d.RevokedAt == nil }

// NewDelegation validates a grant made by the owning contributor.
func (s *Session) NewDelegation(id uuid.UUID, grantedBy, delegateID string, now time.Time) (AuthorityDelegation, error) {
	const op = "Archive.Delegation.Grant"
	if s.Status == StatusArchived {
		return AuthorityDelegation{}, archivedError(op)
	}
	if !s.IsOwner(grantedBy) {
		return AuthorityDelegation{}, permissionDeniedError(op, "only the contributor may delegate authority")
	}
	delegateID = strings.TrimSpace(delegateID)
	if delegateID == "" {
		return AuthorityDelegation{}, validationError(op, "missing delegate id")
	}
	if delegateID == s.ContributorID {
		return AuthorityDelegation{}, validationError(op, "contributor cannot delegate to themselves")
	}
	if id == uuid.Nil {
		return AuthorityDelegation{}, validationError(op, "missing delegation id")
	}
	return AuthorityDelegation{
		ID:         id,
		SessionID:  s.ID,
		DelegateID: delegateID,
		GrantedBy:  s.ContributorID,
		GrantedAt:  now.UTC(),
	}, nil
}
