package handlers

import (
	"strings"

	"gorm.io/datatypes"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
)

type provenanceRequest struct {
	Role     string `json:"role" binding:"omitempty,oneof=own learning documenting reconstructing translating replication variation"`
	Sentence string `json:"sentence"`
}

type intentRequest struct {
	Purposes []string `json:"purposes" binding:"omitempty,dive,oneof=practice documentation instruction preservation research creative sharing"`
	Sentence string   `json:"sentence"`
}

type contextRequest struct {
	Narrative   string   `json:"narrative"`
	Setting     string   `json:"setting" binding:"omitempty,oneof=studio home street club classroom ceremony other"`
	Function    string   `json:"function" binding:"omitempty,oneof=practice performance ritual instruction social other"`
	Constraints []string `json:"constraints" binding:"omitempty,dive,oneof=space floor clothing crowd fatigue injury time surveillance other"`
	FutureNote  string   `json:"future_note"`
}

type communityAuthorityRequest struct {
	Type         string   `json:"type" binding:"omitempty,oneof=own permission public sensitive unsure"`
	Restrictions []string `json:"restrictions"`
}

type apparatusRequest struct {
	Device         string `json:"device"`
	Browser        string `json:"browser"`
	CameraPosition string `json:"camera_position" binding:"omitempty,oneof=front side diagonal moving"`
	BodyVisibility string `json:"body_visibility" binding:"omitempty,oneof=full sometimes frequently"`
	Notes          string `json:"notes"`
}

type confidenceRequest struct {
	Head  float64 `json:"head" binding:"min=0,max=100"`
	Torso float64 `json:"torso" binding:"min=0,max=100"`
	Arms  float64 `json:"arms" binding:"min=0,max=100"`
	Legs  float64 `json:"legs" binding:"min=0,max=100"`
}

type uncertaintyRequest struct {
	Flags      []string           `json:"flags"`
	Confidence *confidenceRequest `json:"confidence"`
	Notes      string             `json:"notes"`
}

type evidentiaryBodyRequest struct {
	VideoURL *string `json:"video_url"`
	AudioURL *string `json:"audio_url"`
}

type computableBodyRequest struct {
	PoseDataURL *string `json:"pose_data_url"`
	FrameCount  *int    `json:"frame_count" binding:"omitempty,min=0"`
}

// authorityRequest carries the permission fields of one ledger append.
// Absent fields carry over from the current version.
type authorityRequest struct {
	EvidenceVisibility    *string `json:"evidence_visibility" binding:"omitempty,oneof=private invited community public"`
	ComputedVisibility    *string `json:"computed_visibility" binding:"omitempty,oneof=private invited community public"`
	DerivativesPermission *string `json:"derivatives_permission" binding:"omitempty,oneof=yes community no"`
	DownloadsPermission   *string `json:"downloads_permission" binding:"omitempty,oneof=none derivatives restricted public"`
	MapDisplayPermitted   *bool   `json:"map_display_permitted"`
	Reason                string  `json:"reason"`
}

type sessionRequest struct {
	Provenance         *provenanceRequest         `json:"provenance"`
	Intent             *intentRequest             `json:"intent"`
	Context            *contextRequest            `json:"context"`
	CommunityAuthority *communityAuthorityRequest `json:"community_authority"`
	Apparatus          *apparatusRequest          `json:"apparatus"`
	Uncertainty        *uncertaintyRequest        `json:"uncertainty"`
	InterpretiveSeed   *string                    `json:"interpretive_seed"`
	EvidentiaryBody    *evidentiaryBodyRequest    `json:"evidentiary_body"`
	ComputableBody     *computableBodyRequest     `json:"computable_body"`
	Authority          *authorityRequest          `json:"authority"`
	ExpectedVersion    int                        `json:"expectedVersion" binding:"min=0"`
}

type depositRequest struct {
	Authority *authorityRequest `json:"authority"`
}

type reviewRequest struct {
	Reason string `json:"reason"`
}

type appendAuthorityRequest struct {
	authorityRequest
	ExpectedVersion int `json:"expectedVersion" binding:"min=0"`
}

type derivativeRequest struct {
	Type             string   `json:"type" binding:"required,oneof=qtc alignment cluster visualization"`
	InputDescription string   `json:"input_description"`
	OutputURL        string   `json:"output_url"`
	LinkedSessions   []string `json:"linked_sessions"`
	CommunityScope   bool     `json:"community_scope"`
}

type delegateRequest struct {
	DelegateID string `json:"delegateId" binding:"required"`
}

func (r *sessionRequest) descriptive() types.DescriptivePatch {
	var p types.DescriptivePatch
	if v := r.Provenance; v != nil {
		p.Provenance = &types.Provenance{Role: types.RoleOption(v.Role), Sentence: v.Sentence}
	}
	if v := r.Intent; v != nil {
		p.Intent = &types.Intent{Purposes: optionSlice[types.IntentOption](v.Purposes), Sentence: v.Sentence}
	}
	if v := r.Context; v != nil {
		p.Context = &types.SessionContext{
			Narrative:   v.Narrative,
			Setting:     types.SettingOption(v.Setting),
			Function:    types.FunctionOption(v.Function),
			Constraints: optionSlice[types.ConstraintOption](v.Constraints),
			FutureNote:  v.FutureNote,
		}
	}
	if v := r.CommunityAuthority; v != nil {
		ca := &types.CommunityAuthority{Type: types.AuthorizationOption(v.Type)}
		if v.Restrictions != nil {
			ca.Restrictions = datatypes.JSONSlice[string](v.Restrictions)
		}
		p.CommunityAuthority = ca
	}
	if v := r.Apparatus; v != nil {
		p.Apparatus = &types.Apparatus{
			Device:         v.Device,
			Browser:        v.Browser,
			CameraPosition: types.CameraPosition(v.CameraPosition),
			BodyVisibility: types.BodyVisibility(v.BodyVisibility),
			Notes:          v.Notes,
		}
	}
	if v := r.Uncertainty; v != nil {
		up := &types.UncertaintyPatch{Flags: v.Flags, Notes: v.Notes}
		if c := v.Confidence; c != nil {
			up.Confidence = &types.BodyConfidence{Head: c.Head, Torso: c.Torso, Arms: c.Arms, Legs: c.Legs}
		}
		p.Uncertainty = up
	}
	p.InterpretiveSeed = r.InterpretiveSeed
	return p
}

func (r *sessionRequest) bodies() types.BodiesPatch {
	var p types.BodiesPatch
	if v := r.EvidentiaryBody; v != nil {
		p.VideoURL = v.VideoURL
		p.AudioURL = v.AudioURL
	}
	if v := r.ComputableBody; v != nil {
		p.PoseDataURL = v.PoseDataURL
		p.FrameCount = v.FrameCount
	}
	return p
}

func (r *authorityRequest) patch() types.AuthorityPatch {
	if r == nil {
		return types.AuthorityPatch{}
	}
	p := types.AuthorityPatch{MapDisplayPermitted: r.MapDisplayPermitted, Reason: r.Reason}
	if r.EvidenceVisibility != nil {
		v := types.VisibilityTier(*r.EvidenceVisibility)
		p.EvidenceVisibility = &v
	}
	if r.ComputedVisibility != nil {
		v := types.VisibilityTier(*r.ComputedVisibility)
		p.ComputedVisibility = &v
	}
	if r.DerivativesPermission != nil {
		v := types.DerivativesPermission(*r.DerivativesPermission)
		p.DerivativesPermission = &v
	}
	if r.DownloadsPermission != nil {
		v := types.DownloadsPermission(*r.DownloadsPermission)
		p.DownloadsPermission = &v
	}
	return p
}

// optionSlice keeps nil distinct from empty: nil leaves the stored list alone.
func optionSlice[T ~string](in []string) datatypes.JSONSlice[T] {
	if in == nil {
		return nil
	}
	out := make(datatypes.JSONSlice[T], 0, len(in))
	for _, v := range in {
		out = append(out, T(strings.TrimSpace(v)))
	}
	return out
}

type derivativeResponse struct {
	types.Derivative
	Stale bool `json:"stale"`
}

type sessionResponse struct {
	*types.Session
	CurrentAuthority  *types.AuthorityVersion           `json:"current_authority,omitempty"`
	UncertaintyLevel  types.UncertaintyLevel            `json:"uncertainty_level,omitempty"`
	RegionUncertainty map[string]types.UncertaintyLevel `json:"region_uncertainty,omitempty"`
	Derivatives       []derivativeResponse              `json:"derivatives"`
	StaleDerivatives  int                               `json:"stale_derivatives"`
}

func newSessionResponse(s *types.Session) sessionResponse {
	out := sessionResponse{Session: s, Derivatives: derivativeResponses(s)}
	if cur, err := s.CurrentPermissions(); err == nil {
		out.CurrentAuthority = &cur
	}
	if level, ok := s.UncertaintyLevel(); ok {
		conf := s.Uncertainty.Confidence.Data()
		out.UncertaintyLevel = level
		out.RegionUncertainty = map[string]types.UncertaintyLevel{
			"head":  types.RegionBand(conf.Head),
			"torso": types.RegionBand(conf.Torso),
			"arms":  types.RegionBand(conf.Arms),
			"legs":  types.RegionBand(conf.Legs),
		}
	}
	for _, d := range out.Derivatives {
		if d.Stale {
			out.StaleDerivatives++
		}
	}
	return out
}

func derivativeResponses(s *types.Session) []derivativeResponse {
	out := make([]derivativeResponse, 0, len(s.Derivatives))
	for _, d := range s.Derivatives {
		out = append(out, derivativeResponse{Derivative: d, Stale: types.IsStale(d, s)})
	}
	return out
}
