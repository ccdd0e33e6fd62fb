package archive

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func completePatch() DescriptivePatch {
	return DescriptivePatch{
		Provenance: &Provenance{Role: RoleLearning, Sentence: "learned from my aunt"},
		Intent:     &Intent{Purposes: []IntentOption{IntentPreservation}},
		Context:    &SessionContext{Setting: SettingHome, Function: FunctionPractice},
		CommunityAuthority: &CommunityAuthority{
			Type: AuthorizationOwn,
		},
	}
}

func newDraft(t *testing.T) *Session {
	t.Helper()
	s, err := NewDraft(uuid.New(), "user_1", t0)
	require.NoError(t, err)
	return s
}

func newDeposited(t *testing.T) *Session {
	t.Helper()
	s := newDraft(t)
	require.NoError(t, s.UpdateDescriptive(completePatch(), t0))
	require.NoError(t, s.Deposit(nil, t0.Add(time.Minute)))
	return s
}

func change(actor string, d DerivativesPermission) AuthorityChange {
	return AuthorityChange{
		ChangedBy:             actor,
		EvidenceVisibility:    VisibilityPrivate,
		ComputedVisibility:    VisibilityCommunity,
		DerivativesPermission: d,
		DownloadsPermission:   DownloadsNone,
	}
}
