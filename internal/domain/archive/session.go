package archive

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Provenance struct {
	Role     RoleOption `gorm:"type:varchar(32)" json:"role"`
	Sentence string     `gorm:"type:text" json:"sentence"`
}

type Intent struct {
	Purposes datatypes.JSONSlice[IntentOption] `json:"purposes"`
	Sentence string                            `gorm:"type:text" json:"sentence"`
}

type SessionContext struct {
	Narrative   string                                `gorm:"type:text" json:"narrative"`
	Setting     SettingOption                         `gorm:"type:varchar(32)" json:"setting"`
	Function    FunctionOption                        `gorm:"type:varchar(32)" json:"function"`
	Constraints datatypes.JSONSlice[ConstraintOption] `json:"constraints"`
	FutureNote  string                                `gorm:"type:text" json:"future_note"`
}

type CommunityAuthority struct {
	Type         AuthorizationOption         `gorm:"type:varchar(32)" json:"type"`
	Restrictions datatypes.JSONSlice[string] `json:"restrictions"`
}

type Apparatus struct {
	Device         string         `json:"device"`
	Browser        string         `json:"browser"`
	CameraPosition CameraPosition `gorm:"type:varchar(32)" json:"camera_position"`
	BodyVisibility BodyVisibility `gorm:"type:varchar(32)" json:"body_visibility"`
	Notes          string         `gorm:"type:text" json:"notes"`
}

// EvidentiaryBody references the raw recording. VideoURL is an opaque storage
// locator and is never dereferenced by the core.
type EvidentiaryBody struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url,omitempty"`
}

// ComputableBody references pose data derived from the evidentiary body.
type ComputableBody struct {
	PoseDataURL string `json:"pose_data_url"`
	FrameCount  int    `json:"frame_count"`
}

// Uncertainty records self-reported capture quality. ConfidenceSet separates
// "not scored" from an all-zero score.
type Uncertainty struct {
	Flags         datatypes.JSONSlice[string]        `json:"flags"`
	Confidence    datatypes.JSONType[BodyConfidence] `json:"confidence"`
	ConfidenceSet bool                               `gorm:"not null;default:false" json:"confidence_set"`
	Notes         string                             `gorm:"type:text" json:"notes"`
}

// Session is the replication-session aggregate root. It exclusively owns its
// authority ledger and its derivatives.
type Session struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ContributorID string        `gorm:"column:contributor_id;not null;index" json:"contributor_id"`
	Status        SessionStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	ReviewReason  string        `gorm:"column:review_reason;type:text" json:"review_reason,omitempty"`

	Provenance         Provenance         `gorm:"embedded;embeddedPrefix:provenance_" json:"provenance"`
	Intent             Intent             `gorm:"embedded;embeddedPrefix:intent_" json:"intent"`
	Context            SessionContext     `gorm:"embedded;embeddedPrefix:context_" json:"context"`
	CommunityAuthority CommunityAuthority `gorm:"embedded;embeddedPrefix:authority_" json:"community_authority"`
	Apparatus          Apparatus          `gorm:"embedded;embeddedPrefix:apparatus_" json:"apparatus"`
	EvidentiaryBody    EvidentiaryBody    `gorm:"embedded;embeddedPrefix:evidence_" json:"evidentiary_body"`
	ComputableBody     ComputableBody     `gorm:"embedded;embeddedPrefix:computable_" json:"computable_body"`
	Uncertainty        Uncertainty        `gorm:"embedded;embeddedPrefix:uncertainty_" json:"uncertainty"`
	InterpretiveSeed   string             `gorm:"column:interpretive_seed;type:text" json:"interpretive_seed"`

	CurrentAuthorityVersion int                `gorm:"column:current_authority_version;not null" json:"current_authority_version"`
	AuthorityVersions       []AuthorityVersion `gorm:"foreignKey:SessionID;references:ID" json:"authority_versions"`
	Derivatives             []Derivative       `gorm:"foreignKey:SessionID;references:ID" json:"derivatives"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index" json:"updated_at"`
}

func (Session) TableName() string { return "session_record" }

// NewDraft starts an empty draft owned by contributorID.
func NewDraft(id uuid.UUID, contributorID string, now time.Time) (*Session, error) {
	const op = "Archive.Session.CreateDraft"
	contributorID = strings.TrimSpace(contributorID)
	if id == uuid.Nil {
		return nil, validationError(op, "missing session id")
	}
	if contributorID == "" {
		return nil, validationError(op, "missing contributor id")
	}
	at := now.UTC()
	return &Session{
		ID:                id,
		ContributorID:     contributorID,
		Status:            StatusDraft,
		AuthorityVersions: []AuthorityVersion{},
		Derivatives:       []Derivative{},
		CreatedAt:         at,
		UpdatedAt:         at,
	}, nil
}

func (s *Session) touch(now time.Time) {
	at := now.UTC()
	if at.Before(s.UpdatedAt) {
		at = s.UpdatedAt
	}
	s.UpdatedAt = at
}

// IsOwner reports whether actor is the depositing contributor.
func (s *Session) IsOwner(actor string) bool {
	return strings.TrimSpace(actor) != "" && strings.TrimSpace(actor) == s.ContributorID
}

// ReadableBy reports whether actor may view the record. Owners and delegates
// always can; everyone else only once computed data is community or public.
func (s *Session) ReadableBy(actor string, delegated bool) bool {
	if s.IsOwner(actor) || delegated {
		return true
	}
	perms, err := s.CurrentPermissions()
	if err != nil {
		return false
	}
	return perms.ComputedVisibility == VisibilityCommunity || perms.ComputedVisibility == VisibilityPublic
}

// NeedsReview is true when the claimed community authority calls for external approval.
func (s *Session) NeedsReview() bool {
	switch s.CommunityAuthority.Type {
	case AuthorizationSensitive, AuthorizationUnsure:
		return true
	default:
		return false
	}
}

// MissingDepositFields lists the required fields that are still empty.
func (s *Session) MissingDepositFields() []string {
	var missing []string
	if s.Provenance.Role == "" {
		missing = append(missing, "provenance.role")
	}
	if len(s.Intent.Purposes) == 0 {
		missing = append(missing, "intent.purposes")
	}
	if s.Context.Setting == "" {
		missing = append(missing, "context.setting")
	}
	if s.Context.Function == "" {
		missing = append(missing, "context.function")
	}
	if s.CommunityAuthority.Type == "" {
		missing = append(missing, "community_authority.type")
	}
	return missing
}

// Deposit moves a complete draft to deposited. When the ledger is still empty
// version 1 is appended from authority, or from the private/no/none defaults
// when authority is nil. A failed deposit leaves the session untouched.
func (s *Session) Deposit(authority *AuthorityPatch, now time.Time) error {
	const op = "Archive.Session.Deposit"
	if s.Status != StatusDraft {
		return invalidTransitionError(op, s.Status, StatusDeposited)
	}
	if missing := s.MissingDepositFields(); len(missing) > 0 {
		return incompleteRecordError(op, missing)
	}
	if len(s.AuthorityVersions) == 0 {
		var patch AuthorityPatch
		if authority != nil {
			patch = *authority
		}
		if _, err := s.AppendVersion(s.ChangeFromPatch(s.ContributorID, false, 0, patch), now); err != nil {
			return err
		}
	} else if authority != nil && !authority.Empty() {
		return validationError(op, "authority already recorded; append a new version instead")
	}
	s.Status = StatusDeposited
	s.touch(now)
	return nil
}

// RequestReview moves deposited → review. Already in review is a no-op.
func (s *Session) RequestReview(reason string, now time.Time) error {
	const op = "Archive.Session.RequestReview"
	switch s.Status {
	case StatusReview:
		return nil
	case StatusDeposited:
		s.Status = StatusReview
		s.ReviewReason = strings.TrimSpace(reason)
		s.touch(now)
		return nil
	default:
		return invalidTransitionError(op, s.Status, StatusReview)
	}
}

// ResolveReview moves review → deposited. Already deposited is a no-op.
func (s *Session) ResolveReview(now time.Time) error {
	const op = "Archive.Session.ResolveReview"
	switch s.Status {
	case StatusDeposited:
		return nil
	case StatusReview:
		s.Status = StatusDeposited
		s.ReviewReason = ""
		s.touch(now)
		return nil
	default:
		return invalidTransitionError(op, s.Status, StatusDeposited)
	}
}

// Withdraw archives the session. Archived is terminal.
func (s *Session) Withdraw(now time.Time) error {
	const op = "Archive.Session.Withdraw"
	switch s.Status {
	case StatusDeposited, StatusReview:
		s.Status = StatusArchived
		s.touch(now)
		return nil
	default:
		return invalidTransitionError(op, s.Status, StatusArchived)
	}
}

// DescriptivePatch carries section updates. Within a provided section, non-zero
// scalar fields and non-nil lists overwrite the stored values.
type DescriptivePatch struct {
	Provenance         *Provenance
	Intent             *Intent
	Context            *SessionContext
	CommunityAuthority *CommunityAuthority
	Apparatus          *Apparatus
	Uncertainty        *UncertaintyPatch
	InterpretiveSeed   *string
}

type UncertaintyPatch struct {
	Flags      []string
	Confidence *BodyConfidence
	Notes      string
}

func (p DescriptivePatch) Empty() bool {
	return p.Provenance == nil && p.Intent == nil && p.Context == nil && p.CommunityAuthority == nil &&
		p.Apparatus == nil && p.Uncertainty == nil && p.InterpretiveSeed == nil
}

func (p DescriptivePatch) validate(op string) error {
	if p.Provenance != nil && p.Provenance.Role != "" && !normalize(p.Provenance.Role).Valid() {
		return validationError(op, "invalid provenance.role")
	}
	if p.Intent != nil {
		for _, purpose := range p.Intent.Purposes {
			if !normalize(purpose).Valid() {
				return validationError(op, "invalid intent.purposes entry")
			}
		}
	}
	if p.Context != nil {
		if p.Context.Setting != "" && !normalize(p.Context.Setting).Valid() {
			return validationError(op, "invalid context.setting")
		}
		if p.Context.Function != "" && !normalize(p.Context.Function).Valid() {
			return validationError(op, "invalid context.function")
		}
		for _, c := range p.Context.Constraints {
			if !normalize(c).Valid() {
				return validationError(op, "invalid context.constraints entry")
			}
		}
	}
	if p.CommunityAuthority != nil && p.CommunityAuthority.Type != "" && !normalize(p.CommunityAuthority.Type).Valid() {
		return validationError(op, "invalid community_authority.type")
	}
	if p.Apparatus != nil {
		if p.Apparatus.CameraPosition != "" && !normalize(p.Apparatus.CameraPosition).Valid() {
			return validationError(op, "invalid apparatus.camera_position")
		}
		if p.Apparatus.BodyVisibility != "" && !normalize(p.Apparatus.BodyVisibility).Valid() {
			return validationError(op, "invalid apparatus.body_visibility")
		}
	}
	if p.Uncertainty != nil && p.Uncertainty.Confidence != nil && !p.Uncertainty.Confidence.InRange() {
		return validationError(op, "uncertainty.confidence scores must be within [0,100]")
	}
	return nil
}

// UpdateDescriptive merges descriptive metadata. Forbidden once archived.
func (s *Session) UpdateDescriptive(p DescriptivePatch, now time.Time) error {
	const op = "Archive.Session.UpdateDescriptive"
	if s.Status == StatusArchived {
		return archivedError(op)
	}
	if err := p.validate(op); err != nil {
		return err
	}
	if p.Empty() {
		return nil
	}
	if v := p.Provenance; v != nil {
		if v.Role != "" {
			s.Provenance.Role = normalize(v.Role)
		}
		setText(&s.Provenance.Sentence, v.Sentence)
	}
	if v := p.Intent; v != nil {
		if v.Purposes != nil {
			s.Intent.Purposes = normalizeAll(v.Purposes)
		}
		setText(&s.Intent.Sentence, v.Sentence)
	}
	if v := p.Context; v != nil {
		setText(&s.Context.Narrative, v.Narrative)
		if v.Setting != "" {
			s.Context.Setting = normalize(v.Setting)
		}
		if v.Function != "" {
			s.Context.Function = normalize(v.Function)
		}
		if v.Constraints != nil {
			s.Context.Constraints = normalizeAll(v.Constraints)
		}
		setText(&s.Context.FutureNote, v.FutureNote)
	}
	if v := p.CommunityAuthority; v != nil {
		if v.Type != "" {
			s.CommunityAuthority.Type = normalize(v.Type)
		}
		if v.Restrictions != nil {
			s.CommunityAuthority.Restrictions = append(datatypes.JSONSlice[string]{}, v.Restrictions...)
		}
	}
	if v := p.Apparatus; v != nil {
		setText(&s.Apparatus.Device, v.Device)
		setText(&s.Apparatus.Browser, v.Browser)
		if v.CameraPosition != "" {
			s.Apparatus.CameraPosition = normalize(v.CameraPosition)
		}
		if v.BodyVisibility != "" {
			s.Apparatus.BodyVisibility = normalize(v.BodyVisibility)
		}
		setText(&s.Apparatus.Notes, v.Notes)
	}
	if v := p.Uncertainty; v != nil {
		if v.Flags != nil {
			s.Uncertainty.Flags = append(datatypes.JSONSlice[string]{}, v.Flags...)
		}
		if v.Confidence != nil {
			s.Uncertainty.Confidence = datatypes.NewJSONType(*v.Confidence)
			s.Uncertainty.ConfidenceSet = true
		}
		setText(&s.Uncertainty.Notes, v.Notes)
	}
	if p.InterpretiveSeed != nil {
		s.InterpretiveSeed = strings.TrimSpace(*p.InterpretiveSeed)
	}
	s.touch(now)
	return nil
}

// BodiesPatch updates the evidentiary/computable bodies.
type BodiesPatch struct {
	VideoURL    *string
	AudioURL    *string
	PoseDataURL *string
	FrameCount  *int
}

func (p BodiesPatch) Empty() bool {
	return p.VideoURL == nil && p.AudioURL == nil && p.PoseDataURL == nil && p.FrameCount == nil
}

// AttachBodies applies body references. A computable body is only accepted when
// it stays tethered to an evidentiary video.
func (s *Session) AttachBodies(p BodiesPatch, now time.Time) error {
	const op = "Archive.Session.AttachBodies"
	if s.Status == StatusArchived {
		return archivedError(op)
	}
	if p.Empty() {
		return nil
	}
	next := s.EvidentiaryBody
	comp := s.ComputableBody
	if p.VideoURL != nil {
		next.VideoURL = strings.TrimSpace(*p.VideoURL)
	}
	if p.AudioURL != nil {
		next.AudioURL = strings.TrimSpace(*p.AudioURL)
	}
	if p.PoseDataURL != nil {
		comp.PoseDataURL = strings.TrimSpace(*p.PoseDataURL)
	}
	if p.FrameCount != nil {
		if *p.FrameCount < 0 {
			return validationError(op, "frame_count must be >= 0")
		}
		comp.FrameCount = *p.FrameCount
	}
	if (comp.PoseDataURL != "" || comp.FrameCount > 0) && next.VideoURL == "" {
		return validationError(op, "computable body requires an evidentiary video")
	}
	s.EvidentiaryBody = next
	s.ComputableBody = comp
	s.touch(now)
	return nil
}

// SetEvidentiaryMedia records an uploaded media locator.
func (s *Session) SetEvidentiaryMedia(locator string, now time.Time) error {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return validationError("Archive.Session.SetEvidentiaryMedia", "missing media locator")
	}
	return s.AttachBodies(BodiesPatch{VideoURL: &locator}, now)
}

func setText(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func normalizeAll[T ~string](in []T) datatypes.JSONSlice[T] {
	out := make(datatypes.JSONSlice[T], 0, len(in))
	seen := make(map[T]struct{}, len(in))
	for _, v := range in {
		n := normalize(v)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
