package archive

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Derivative is an analytical product computed from a session. It is bound
// for life to the authority version that permitted it. Seq numbers a
// session's derivatives in recording order.
type Derivative struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID            uuid.UUID                   `gorm:"type:uuid;not null;index;uniqueIndex:idx_derivative_session_seq,priority:1" json:"session_id"`
	Seq                  int                         `gorm:"column:seq;not null;default:0;uniqueIndex:idx_derivative_session_seq,priority:2" json:"seq"`
	Type                 DerivativeType              `gorm:"column:type;type:varchar(32);not null" json:"type"`
	CreatedAt            time.Time                   `gorm:"column:created_at;not null" json:"created_at"`
	CreatedBy            string                      `gorm:"column:created_by;not null" json:"created_by"`
	AuthorityVersionUsed int                         `gorm:"column:authority_version_used;not null" json:"authority_version_used"`
	InputDescription     string                      `gorm:"type:text" json:"input_description"`
	OutputURL            string                      `gorm:"column:output_url" json:"output_url,omitempty"`
	LinkedSessions       datatypes.JSONSlice[string] `gorm:"column:linked_sessions" json:"linked_sessions"`
}

func (Derivative) TableName() string { return "derivative" }

type DerivativeInput struct {
	ID               uuid.UUID
	Type             DerivativeType
	CreatedBy        string
	InputDescription string
	OutputURL        string
	LinkedSessions   []string
	// CommunityScope is the caller's assertion that the derivative stays
	// within the contributor's community.
	CommunityScope bool
}

// RecordDerivative binds a new derivative to the current authority version,
// provided that version permits it. Drafts cannot carry derivatives.
func (s *Session) RecordDerivative(in DerivativeInput, now time.Time) (Derivative, error) {
	const op = "Archive.Derivative.Record"
	switch s.Status {
	case StatusArchived:
		return Derivative{}, archivedError(op)
	case StatusDraft:
		return Derivative{}, notDepositedError(op)
	}
	if in.ID == uuid.Nil {
		return Derivative{}, validationError(op, "missing derivative id")
	}
	kind := normalize(in.Type)
	if !kind.Valid() {
		return Derivative{}, validationError(op, "invalid derivative type")
	}
	createdBy := strings.TrimSpace(in.CreatedBy)
	if createdBy == "" {
		return Derivative{}, validationError(op, "missing created_by")
	}
	linked := make(datatypes.JSONSlice[string], 0, len(in.LinkedSessions))
	for _, raw := range in.LinkedSessions {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return Derivative{}, validationError(op, "linked_sessions entries must be session ids")
		}
		linked = append(linked, id.String())
	}
	perms, err := s.CurrentPermissions()
	if err != nil {
		return Derivative{}, err
	}
	switch perms.DerivativesPermission {
	case DerivativesNo:
		return Derivative{}, permissionDeniedError(op, "contributor has not permitted derivatives")
	case DerivativesCommunity:
		if !in.CommunityScope {
			return Derivative{}, permissionDeniedError(op, "derivatives are limited to community scope")
		}
	}
	seq := 1
	if n := len(s.Derivatives); n > 0 {
		seq = s.Derivatives[n-1].Seq + 1
	}
	d := Derivative{
		ID:                   in.ID,
		SessionID:            s.ID,
		Seq:                  seq,
		Type:                 kind,
		CreatedAt:            now.UTC(),
		CreatedBy:            createdBy,
		AuthorityVersionUsed: perms.Version,
		InputDescription:     strings.TrimSpace(in.InputDescription),
		OutputURL:            strings.TrimSpace(in.OutputURL),
		LinkedSessions:       linked,
	}
	s.Derivatives = append(s.Derivatives, d)
	s.touch(now)
	return d, nil
}

// IsStale reports whether the session's permissions moved on after d was made.
func IsStale(d Derivative, s *Session) bool {
	return d.AuthorityVersionUsed != s.CurrentAuthorityVersion
}

// StaleDerivatives lists derivatives bound to a superseded authority version.
func (s *Session) StaleDerivatives() []Derivative {
	var out []Derivative
	for _, d := range s.Derivatives {
		if IsStale(d, s) {
			out = append(out, d)
		}
	}
	return out
}
