package archive

import "strings"

type SessionStatus string

const (
	StatusDraft     SessionStatus = "draft"
	StatusDeposited SessionStatus = "deposited"
	StatusReview    SessionStatus = "review"
	StatusArchived  SessionStatus = "archived"
)

func (s SessionStatus) Valid() bool {
	return oneOf(s, StatusDraft, StatusDeposited, StatusReview, StatusArchived)
}

type RoleOption string

const (
	RoleOwn            RoleOption = "own"
	RoleLearning       RoleOption = "learning"
	RoleDocumenting    RoleOption = "documenting"
	RoleReconstructing RoleOption = "reconstructing"
	RoleTranslating    RoleOption = "translating"
	RoleReplication    RoleOption = "replication"
	RoleVariation      RoleOption = "variation"
)

func (r RoleOption) Valid() bool {
	return oneOf(r, RoleOwn, RoleLearning, RoleDocumenting, RoleReconstructing, RoleTranslating, RoleReplication, RoleVariation)
}

type IntentOption string

const (
	IntentPractice      IntentOption = "practice"
	IntentDocumentation IntentOption = "documentation"
	IntentInstruction   IntentOption = "instruction"
	IntentPreservation  IntentOption = "preservation"
	IntentResearch      IntentOption = "research"
	IntentCreative      IntentOption = "creative"
	IntentSharing       IntentOption = "sharing"
)

func (i IntentOption) Valid() bool {
	return oneOf(i, IntentPractice, IntentDocumentation, IntentInstruction, IntentPreservation, IntentResearch, IntentCreative, IntentSharing)
}

type SettingOption string

const (
	SettingStudio    SettingOption = "studio"
	SettingHome      SettingOption = "home"
	SettingStreet    SettingOption = "street"
	SettingClub      SettingOption = "club"
	SettingClassroom SettingOption = "classroom"
	SettingCeremony  SettingOption = "ceremony"
	SettingOther     SettingOption = "other"
)

func (s SettingOption) Valid() bool {
	return oneOf(s, SettingStudio, SettingHome, SettingStreet, SettingClub, SettingClassroom, SettingCeremony, SettingOther)
}

type FunctionOption string

const (
	FunctionPractice    FunctionOption = "practice"
	FunctionPerformance FunctionOption = "performance"
	FunctionRitual      FunctionOption = "ritual"
	FunctionInstruction FunctionOption = "instruction"
	FunctionSocial      FunctionOption = "social"
	FunctionOther       FunctionOption = "other"
)

func (f FunctionOption) Valid() bool {
	return oneOf(f, FunctionPractice, FunctionPerformance, FunctionRitual, FunctionInstruction, FunctionSocial, FunctionOther)
}

type ConstraintOption string

const (
	ConstraintSpace        ConstraintOption = "space"
	ConstraintFloor        ConstraintOption = "floor"
	ConstraintClothing     ConstraintOption = "clothing"
	ConstraintCrowd        ConstraintOption = "crowd"
	ConstraintFatigue      ConstraintOption = "fatigue"
	ConstraintInjury       ConstraintOption = "injury"
	ConstraintTime         ConstraintOption = "time"
	ConstraintSurveillance ConstraintOption = "surveillance"
	ConstraintOther        ConstraintOption = "other"
)

func (c ConstraintOption) Valid() bool {
	return oneOf(c, ConstraintSpace, ConstraintFloor, ConstraintClothing, ConstraintCrowd, ConstraintFatigue,
		ConstraintInjury, ConstraintTime, ConstraintSurveillance, ConstraintOther)
}

// AuthorizationOption is the community-authority basis a contributor claims.
type AuthorizationOption string

const (
	AuthorizationOwn        AuthorizationOption = "own"
	AuthorizationPermission AuthorizationOption = "permission"
	AuthorizationPublic     AuthorizationOption = "public"
	AuthorizationSensitive  AuthorizationOption = "sensitive"
	AuthorizationUnsure     AuthorizationOption = "unsure"
)

func (a AuthorizationOption) Valid() bool {
	return oneOf(a, AuthorizationOwn, AuthorizationPermission, AuthorizationPublic, AuthorizationSensitive, AuthorizationUnsure)
}

type CameraPosition string

const (
	CameraFront    CameraPosition = "front"
	CameraSide     CameraPosition = "side"
	CameraDiagonal CameraPosition = "diagonal"
	CameraMoving   CameraPosition = "moving"
)

func (c CameraPosition) Valid() bool {
	return oneOf(c, CameraFront, CameraSide, CameraDiagonal, CameraMoving)
}

// BodyVisibility describes how often the body leaves frame.
type BodyVisibility string

const (
	BodyVisibleFull      BodyVisibility = "full"
	BodyHiddenSometimes  BodyVisibility = "sometimes"
	BodyHiddenFrequently BodyVisibility = "frequently"
)

func (b BodyVisibility) Valid() bool {
	return oneOf(b, BodyVisibleFull, BodyHiddenSometimes, BodyHiddenFrequently)
}

type VisibilityTier string

const (
	VisibilityPrivate   VisibilityTier = "private"
	VisibilityInvited   VisibilityTier = "invited"
	VisibilityCommunity VisibilityTier = "community"
	VisibilityPublic    VisibilityTier = "public"
)

func (v VisibilityTier) Valid() bool {
	return oneOf(v, VisibilityPrivate, VisibilityInvited, VisibilityCommunity, VisibilityPublic)
}

type DerivativesPermission string

const (
	DerivativesYes       DerivativesPermission = "yes"
	DerivativesCommunity DerivativesPermission = "community"
	DerivativesNo        DerivativesPermission = "no"
)

func (d DerivativesPermission) Valid() bool {
	return oneOf(d, DerivativesYes, DerivativesCommunity, DerivativesNo)
}

type DownloadsPermission string

const (
	DownloadsNone        DownloadsPermission = "none"
	DownloadsDerivatives DownloadsPermission = "derivatives"
	DownloadsRestricted  DownloadsPermission = "restricted"
	DownloadsPublic      DownloadsPermission = "public"
)

func (d DownloadsPermission) Valid() bool {
	return oneOf(d, DownloadsNone, DownloadsDerivatives, DownloadsRestricted, DownloadsPublic)
}

type DerivativeType string

const (
	DerivativeQTC           DerivativeType = "qtc"
	DerivativeAlignment     DerivativeType = "alignment"
	DerivativeCluster       DerivativeType = "cluster"
	DerivativeVisualization DerivativeType = "visualization"
)

func (d DerivativeType) Valid() bool {
	return oneOf(d, DerivativeQTC, DerivativeAlignment, DerivativeCluster, DerivativeVisualization)
}

type UncertaintyLevel string

const (
	UncertaintyLow      UncertaintyLevel = "low"
	UncertaintyModerate UncertaintyLevel = "moderate"
	UncertaintyHigh     UncertaintyLevel = "high"
)

func oneOf[T ~string](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// normalize lower-cases and trims raw option input coming off the wire.
func normalize[T ~string](v T) T {
	return T(strings.ToLower(strings.TrimSpace(string(v))))
}
