package archive

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthorityVersion is one immutable ledger entry: a full snapshot of the
// sharing permissions at a moment in time.
type AuthorityVersion struct {
	SessionID             uuid.UUID             `gorm:"type:uuid;primaryKey" json:"session_id"`
	Version               int                   `gorm:"primaryKey;autoIncrement:false" json:"version"`
	Timestamp             time.Time             `gorm:"column:recorded_at;not null" json:"timestamp"`
	ChangedBy             string                `gorm:"column:changed_by;not null" json:"changed_by"`
	Delegated             bool                  `gorm:"column:delegated;not null;default:false" json:"delegated"`
	Reason                string                `gorm:"type:text" json:"reason,omitempty"`
	EvidenceVisibility    VisibilityTier        `gorm:"column:evidence_visibility;type:varchar(16);not null" json:"evidence_visibility"`
	ComputedVisibility    VisibilityTier        `gorm:"column:computed_visibility;type:varchar(16);not null" json:"computed_visibility"`
	DerivativesPermission DerivativesPermission `gorm:"column:derivatives_permission;type:varchar(16);not null" json:"derivatives_permission"`
	DownloadsPermission   DownloadsPermission   `gorm:"column:downloads_permission;type:varchar(16);not null" json:"downloads_permission"`
	MapDisplayPermitted   *bool                 `gorm:"column:map_display_permitted" json:"map_display_permitted,omitempty"`
}

func (AuthorityVersion) TableName() string { return "authority_version" }

func (v AuthorityVersion) clone() AuthorityVersion {
	if v.MapDisplayPermitted != nil {
		b := *v.MapDisplayPermitted
		v.MapDisplayPermitted = &b
	}
	return v
}

// AuthorityChange is the full permission snapshot for a new ledger entry.
// ExpectedVersion, when > 0, must equal the current version or the append
// fails with a retryable conflict.
type AuthorityChange struct {
	ChangedBy             string
	Delegated             bool
	ExpectedVersion       int
	Reason                string
	EvidenceVisibility    VisibilityTier
	ComputedVisibility    VisibilityTier
	DerivativesPermission DerivativesPermission
	DownloadsPermission   DownloadsPermission
	MapDisplayPermitted   *bool
}

// DefaultAuthority is the most restrictive snapshot, used for version 1 when
// the contributor supplies nothing.
func DefaultAuthority() AuthorityVersion {
	return AuthorityVersion{
		EvidenceVisibility:    VisibilityPrivate,
		ComputedVisibility:    VisibilityPrivate,
		DerivativesPermission: DerivativesNo,
		DownloadsPermission:   DownloadsNone,
	}
}

// AuthorityPatch names the permission fields a caller wants to change. Unset
// fields carry over from the current version.
type AuthorityPatch struct {
	EvidenceVisibility    *VisibilityTier
	ComputedVisibility    *VisibilityTier
	DerivativesPermission *DerivativesPermission
	DownloadsPermission   *DownloadsPermission
	MapDisplayPermitted   *bool
	Reason                string
}

// Empty is true when no permission field is set. A reason alone is not a change.
func (p AuthorityPatch) Empty() bool {
	return p.EvidenceVisibility == nil && p.ComputedVisibility == nil && p.DerivativesPermission == nil &&
		p.DownloadsPermission == nil && p.MapDisplayPermitted == nil
}

// Apply overlays the patch on base and returns the resulting snapshot.
func (p AuthorityPatch) Apply(base AuthorityVersion) AuthorityChange {
	out := AuthorityChange{
		Reason:                strings.TrimSpace(p.Reason),
		EvidenceVisibility:    base.EvidenceVisibility,
		ComputedVisibility:    base.ComputedVisibility,
		DerivativesPermission: base.DerivativesPermission,
		DownloadsPermission:   base.DownloadsPermission,
		MapDisplayPermitted:   base.clone().MapDisplayPermitted,
	}
	if p.EvidenceVisibility != nil {
		out.EvidenceVisibility = *p.EvidenceVisibility
	}
	if p.ComputedVisibility != nil {
		out.ComputedVisibility = *p.ComputedVisibility
	}
	if p.DerivativesPermission != nil {
		out.DerivativesPermission = *p.DerivativesPermission
	}
	if p.DownloadsPermission != nil {
		out.DownloadsPermission = *p.DownloadsPermission
	}
	if p.MapDisplayPermitted != nil {
		b := *p.MapDisplayPermitted
		out.MapDisplayPermitted = &b
	}
	return out
}

// ChangeFromPatch builds a full change from the current permissions (or the
// defaults on an empty ledger) overlaid with p.
func (s *Session) ChangeFromPatch(actor string, delegated bool, expected int, p AuthorityPatch) AuthorityChange {
	base := DefaultAuthority()
	if cur, err := s.CurrentPermissions(); err == nil {
		base = cur
	}
	change := p.Apply(base)
	change.ChangedBy = actor
	change.Delegated = delegated
	change.ExpectedVersion = expected
	return change
}

// AppendVersion adds a new ledger entry and advances the current pointer.
// The caller decides whether change.ChangedBy is a delegate. Timestamps are
// clamped so they never run backwards.
func (s *Session) AppendVersion(change AuthorityChange, now time.Time) (AuthorityVersion, error) {
	const op = "Archive.Ledger.AppendVersion"
	if s.Status == StatusArchived {
		return AuthorityVersion{}, archivedError(op)
	}
	actor := strings.TrimSpace(change.ChangedBy)
	if actor == "" {
		return AuthorityVersion{}, validationError(op, "missing changed_by")
	}
	if actor != s.ContributorID && !change.Delegated {
		return AuthorityVersion{}, invalidActorError(op, actor)
	}
	change.EvidenceVisibility = normalize(change.EvidenceVisibility)
	change.ComputedVisibility = normalize(change.ComputedVisibility)
	change.DerivativesPermission = normalize(change.DerivativesPermission)
	change.DownloadsPermission = normalize(change.DownloadsPermission)
	if !change.EvidenceVisibility.Valid() {
		return AuthorityVersion{}, validationError(op, "invalid evidence_visibility")
	}
	if !change.ComputedVisibility.Valid() {
		return AuthorityVersion{}, validationError(op, "invalid computed_visibility")
	}
	if !change.DerivativesPermission.Valid() {
		return AuthorityVersion{}, validationError(op, "invalid derivatives_permission")
	}
	if !change.DownloadsPermission.Valid() {
		return AuthorityVersion{}, validationError(op, "invalid downloads_permission")
	}
	if change.ExpectedVersion < 0 {
		return AuthorityVersion{}, validationError(op, "expected_version must be >= 0")
	}
	if err := s.CheckLedger(); err != nil {
		return AuthorityVersion{}, err
	}
	if change.ExpectedVersion > 0 && change.ExpectedVersion != s.CurrentAuthorityVersion {
		return AuthorityVersion{}, appendConflictError(op, change.ExpectedVersion, s.CurrentAuthorityVersion)
	}

	ts := now.UTC()
	if n := len(s.AuthorityVersions); n > 0 && ts.Before(s.AuthorityVersions[n-1].Timestamp) {
		ts = s.AuthorityVersions[n-1].Timestamp
	}
	var mapDisplay *bool
	if change.MapDisplayPermitted != nil {
		b := *change.MapDisplayPermitted
		mapDisplay = &b
	}
	v := AuthorityVersion{
		SessionID:             s.ID,
		Version:               len(s.AuthorityVersions) + 1,
		Timestamp:             ts,
		ChangedBy:             actor,
		Delegated:             actor != s.ContributorID,
		Reason:                strings.TrimSpace(change.Reason),
		EvidenceVisibility:    change.EvidenceVisibility,
		ComputedVisibility:    change.ComputedVisibility,
		DerivativesPermission: change.DerivativesPermission,
		DownloadsPermission:   change.DownloadsPermission,
		MapDisplayPermitted:   mapDisplay,
	}
	s.AuthorityVersions = append(s.AuthorityVersions, v)
	s.CurrentAuthorityVersion = v.Version
	s.touch(now)
	return v.clone(), nil
}

// CurrentPermissions returns the version the current pointer names.
func (s *Session) CurrentPermissions() (AuthorityVersion, error) {
	const op = "Archive.Ledger.CurrentPermissions"
	if len(s.AuthorityVersions) == 0 {
		return AuthorityVersion{}, emptyLedgerError(op)
	}
	v, ok := s.find(s.CurrentAuthorityVersion)
	if !ok {
		return AuthorityVersion{}, invariantError(op, "current authority pointer does not name a ledger entry")
	}
	return v.clone(), nil
}

// VersionAt returns the snapshot recorded as version n.
func (s *Session) VersionAt(n int) (AuthorityVersion, error) {
	v, ok := s.find(n)
	if !ok {
		return AuthorityVersion{}, notFoundError("Archive.Ledger.VersionAt", "authority version not found")
	}
	return v.clone(), nil
}

func (s *Session) find(n int) (AuthorityVersion, bool) {
	if n < 1 || n > len(s.AuthorityVersions) {
		return AuthorityVersion{}, false
	}
	v := s.AuthorityVersions[n-1]
	if v.Version != n {
		return AuthorityVersion{}, false
	}
	return v, true
}

// AuthorityHistory returns a copy of the ledger in version order.
func (s *Session) AuthorityHistory() []AuthorityVersion {
	out := make([]AuthorityVersion, 0, len(s.AuthorityVersions))
	for _, v := range s.AuthorityVersions {
		out = append(out, v.clone())
	}
	return out
}

// CheckLedger verifies that versions are dense from 1, timestamps never
// decrease and the current pointer names the last entry.
func (s *Session) CheckLedger() error {
	const op = "Archive.Ledger.Check"
	var prev time.Time
	for i, v := range s.AuthorityVersions {
		if v.Version != i+1 {
			return invariantError(op, "authority versions are not dense")
		}
		if i > 0 && v.Timestamp.Before(prev) {
			return invariantError(op, "authority timestamps decrease")
		}
		prev = v.Timestamp
	}
	if s.CurrentAuthorityVersion != len(s.AuthorityVersions) {
		return invariantError(op, "current authority pointer is not the last version")
	}
	return nil
}
