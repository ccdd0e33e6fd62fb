package aggregates_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/gmr-archive-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/gmr-archive-backend/internal/data/repos"
	repotest "github.com/yungbote/gmr-archive-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

const owner = "contributor-1"

type harness struct {
	agg   types.SessionAggregate
	repos repos.Set
	hooks *aggtest.HooksRecorder
	ctx   context.Context
	db    *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	hooks := &aggtest.HooksRecorder{}
	agg := aggregates.NewSessionAggregate(aggregates.SessionAggregateDeps{
		Base:        aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks},
		Sessions:    set.Sessions,
		Versions:    set.AuthorityVersions,
		Derivatives: set.Derivatives,
		Delegations: set.Delegations,
	})
	return &harness{agg: agg, repos: set, hooks: hooks, ctx: context.Background(), db: db}
}

// withRunner returns an aggregate over the same tables whose writes go
// through runner.
func (h *harness) withRunner(t *testing.T, runner aggregates.TxRunner) types.SessionAggregate {
	t.Helper()
	return aggregates.NewSessionAggregate(aggregates.SessionAggregateDeps{
		Base:        aggregates.BaseDeps{DB: h.db, Log: repotest.Logger(t), Hooks: h.hooks, Runner: runner},
		Sessions:    h.repos.Sessions,
		Versions:    h.repos.AuthorityVersions,
		Derivatives: h.repos.Derivatives,
		Delegations: h.repos.Delegations,
	})
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *types.Session {
	t.Helper()
	s, err := h.repos.Sessions.GetByID(dbctx.Context{Ctx: h.ctx}, id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (h *harness) deposited(t *testing.T, patch *types.AuthorityPatch) *types.Session {
	t.Helper()
	s, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{
		ContributorID: owner,
		Descriptive:   repotest.CompleteDescriptive(),
	})
	require.NoError(t, err)
	s, err = h.agg.Deposit(h.ctx, types.DepositInput{SessionID: s.ID, ActorID: owner, Authority: patch})
	require.NoError(t, err)
	return s
}

func ptr[T any](v T) *T { return &v }

func TestSessionAggregateContract(t *testing.T) {
	h := newHarness(t)
	c := h.agg.Contract()
	assert.Equal(t, "Archive.SessionAggregate", c.Name)
	assert.True(t, c.RequiresAggregateOwnedTx())
}

func TestDepositWithDefaultsPersistsVersionOne(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)

	stored := h.reload(t, s.ID)
	assert.Equal(t, types.StatusDeposited, stored.Status)
	require.Len(t, stored.AuthorityVersions, 1)
	v := stored.AuthorityVersions[0]
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, types.VisibilityPrivate, v.EvidenceVisibility)
	assert.Equal(t, types.VisibilityPrivate, v.ComputedVisibility)
	assert.Equal(t, types.DerivativesNo, v.DerivativesPermission)
	assert.Equal(t, types.DownloadsNone, v.DownloadsPermission)
	assert.Equal(t, 1, stored.CurrentAuthorityVersion)
	assert.Equal(t, []bool{false}, h.hooks.Appends)
	assert.Equal(t, "success", h.hooks.StatusOf("Archive.Session.Deposit"))
}

func TestCreateDraftWithAuthorityAppendsVersionOne(t *testing.T) {
	h := newHarness(t)
	s, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{
		ContributorID: owner,
		Authority:     types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesYes)},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusDraft, s.Status)

	stored := h.reload(t, s.ID)
	require.Len(t, stored.AuthorityVersions, 1)
	assert.Equal(t, types.DerivativesYes, stored.AuthorityVersions[0].DerivativesPermission)
	assert.Equal(t, types.VisibilityPrivate, stored.AuthorityVersions[0].EvidenceVisibility)
}

func TestCreateDraftRejectsMissingContributor(t *testing.T) {
	h := newHarness(t)
	_, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{ContributorID: "  "})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}

func TestFailedDepositLeavesNoPartialWrites(t *testing.T) {
	h := newHarness(t)
	s, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{ContributorID: owner})
	require.NoError(t, err)

	_, err = h.agg.Deposit(h.ctx, types.DepositInput{SessionID: s.ID, ActorID: owner})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeIncompleteRecord))

	stored := h.reload(t, s.ID)
	assert.Equal(t, types.StatusDraft, stored.Status)
	assert.Empty(t, stored.AuthorityVersions)
	assert.Equal(t, 0, stored.CurrentAuthorityVersion)
	assert.Empty(t, h.hooks.Appends)
}

func TestDepositOfSensitiveClaimMovesToReview(t *testing.T) {
	h := newHarness(t)
	desc := repotest.CompleteDescriptive()
	desc.CommunityAuthority = &types.CommunityAuthority{Type: types.AuthorizationSensitive}
	s, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{ContributorID: owner, Descriptive: desc})
	require.NoError(t, err)

	s, err = h.agg.Deposit(h.ctx, types.DepositInput{SessionID: s.ID, ActorID: owner})
	require.NoError(t, err)
	assert.Equal(t, types.StatusReview, s.Status)
	assert.NotEmpty(t, s.ReviewReason)

	s, err = h.agg.ResolveReview(h.ctx, types.TransitionInput{SessionID: s.ID, ActorID: owner})
	require.NoError(t, err)
	assert.Equal(t, types.StatusDeposited, h.reload(t, s.ID).Status)
}

func TestOnlyOwnerMayDeposit(t *testing.T) {
	h := newHarness(t)
	s, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{ContributorID: owner, Descriptive: repotest.CompleteDescriptive()})
	require.NoError(t, err)

	_, err = h.agg.Deposit(h.ctx, types.DepositInput{SessionID: s.ID, ActorID: "someone-else"})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidActor))
	assert.Equal(t, types.StatusDraft, h.reload(t, s.ID).Status)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.agg.Withdraw(h.ctx, types.TransitionInput{SessionID: uuid.New(), ActorID: owner})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeNotFound))
}

func TestAppendAuthorityVersionCarriesUnsetFields(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, &types.AuthorityPatch{ComputedVisibility: ptr(types.VisibilityCommunity)})

	v, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID:       s.ID,
		ActorID:         owner,
		ExpectedVersion: 1,
		Patch:           types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesYes), Reason: "open for research"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, types.VisibilityCommunity, v.ComputedVisibility)
	assert.Equal(t, types.DerivativesYes, v.DerivativesPermission)
	assert.Equal(t, "open for research", v.Reason)

	stored := h.reload(t, s.ID)
	require.NoError(t, stored.CheckLedger())
	assert.Equal(t, 2, stored.CurrentAuthorityVersion)
	assert.Equal(t, types.DerivativesNo, stored.AuthorityVersions[0].DerivativesPermission)
}

func TestAppendAuthorityVersionRejectsEmptyPatch(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)
	_, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   owner,
		Patch:     types.AuthorityPatch{Reason: "nothing changes"},
	})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}

func TestConcurrentAppendsConflictThenRetrySucceeds(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	start := make(chan struct{})
	for _, perm := range []types.DerivativesPermission{types.DerivativesYes, types.DerivativesCommunity} {
		perm := perm
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
				SessionID:       s.ID,
				ActorID:         owner,
				ExpectedVersion: 1,
				Patch:           types.AuthorityPatch{DerivativesPermission: ptr(perm)},
			})
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case domainagg.IsCode(err, domainagg.CodeAppendConflict):
			assert.True(t, domainagg.IsRetryable(err))
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflicts)

	v, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID:       s.ID,
		ActorID:         owner,
		ExpectedVersion: 2,
		Patch:           types.AuthorityPatch{DownloadsPermission: ptr(types.DownloadsDerivatives)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Version)

	stored := h.reload(t, s.ID)
	require.Len(t, stored.AuthorityVersions, 3)
	require.NoError(t, stored.CheckLedger())
	assert.Equal(t, 3, stored.CurrentAuthorityVersion)
	assert.Len(t, h.hooks.Conflicts, 1)
}

func TestUpdateSessionAppendsAuthorityInsteadOfOverwriting(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)

	seed := "a slow turn on the left foot"
	updated, err := h.agg.UpdateSession(h.ctx, types.UpdateSessionInput{
		SessionID:   s.ID,
		ActorID:     owner,
		Descriptive: types.DescriptivePatch{InterpretiveSeed: &seed},
		Authority:   types.AuthorityPatch{EvidenceVisibility: ptr(types.VisibilityInvited)},
	})
	require.NoError(t, err)
	assert.Equal(t, seed, updated.InterpretiveSeed)

	stored := h.reload(t, s.ID)
	assert.Equal(t, seed, stored.InterpretiveSeed)
	require.Len(t, stored.AuthorityVersions, 2)
	assert.Equal(t, types.VisibilityPrivate, stored.AuthorityVersions[0].EvidenceVisibility)
	assert.Equal(t, types.VisibilityInvited, stored.AuthorityVersions[1].EvidenceVisibility)

	_, err = h.agg.UpdateSession(h.ctx, types.UpdateSessionInput{
		SessionID:       s.ID,
		ActorID:         owner,
		Authority:       types.AuthorityPatch{EvidenceVisibility: ptr(types.VisibilityPublic)},
		ExpectedVersion: 1,
	})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeAppendConflict))
	assert.Len(t, h.reload(t, s.ID).AuthorityVersions, 2)
}

func TestUpdateSessionRejectsUntetheredPoseData(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)
	_, err := h.agg.UpdateSession(h.ctx, types.UpdateSessionInput{
		SessionID: s.ID,
		ActorID:   owner,
		Bodies:    types.BodiesPatch{PoseDataURL: ptr("gs://bucket/pose.json")},
	})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	assert.Empty(t, h.reload(t, s.ID).ComputableBody.PoseDataURL)
}

func TestDelegateAppendsAreFlagged(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)
	const delegate = "elder-council"

	_, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   delegate,
		Patch:     types.AuthorityPatch{ComputedVisibility: ptr(types.VisibilityCommunity)},
	})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidActor))

	grant, err := h.agg.GrantDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: delegate})
	require.NoError(t, err)
	again, err := h.agg.GrantDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: delegate})
	require.NoError(t, err)
	assert.Equal(t, grant.ID, again.ID, "granting twice returns the active grant")

	v, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   delegate,
		Patch:     types.AuthorityPatch{ComputedVisibility: ptr(types.VisibilityCommunity)},
	})
	require.NoError(t, err)
	assert.True(t, v.Delegated)
	assert.Equal(t, delegate, v.ChangedBy)
	assert.Equal(t, []bool{false, true}, h.hooks.Appends)

	require.NoError(t, h.agg.RevokeDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: delegate}))
	err = h.agg.RevokeDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: delegate})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeNotFound))

	_, err = h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   delegate,
		Patch:     types.AuthorityPatch{ComputedVisibility: ptr(types.VisibilityPublic)},
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidActor))
}

func TestDelegatesCannotGrantOrWithdraw(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)
	_, err := h.agg.GrantDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: "steward"})
	require.NoError(t, err)

	_, err = h.agg.GrantDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: "steward", DelegateID: "other"})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidActor))
	_, err = h.agg.Withdraw(h.ctx, types.TransitionInput{SessionID: s.ID, ActorID: "steward"})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidActor))

	_, err = h.agg.GrantDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: owner})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}

func TestDerivativeBindsToCurrentVersionAndGoesStale(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)

	_, err := h.agg.RecordDerivative(h.ctx, types.RecordDerivativeInput{
		SessionID: s.ID,
		ActorID:   "researcher-9",
		Type:      types.DerivativeQTC,
	})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodePermissionDenied))

	_, err = h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   owner,
		Patch:     types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesYes)},
	})
	require.NoError(t, err)

	other := uuid.New().String()
	d, err := h.agg.RecordDerivative(h.ctx, types.RecordDerivativeInput{
		SessionID:        s.ID,
		ActorID:          "researcher-9",
		Type:             types.DerivativeAlignment,
		InputDescription: "aligned against a second recording",
		OutputURL:        "gs://derivatives/alignment.json",
		LinkedSessions:   []string{other},
		At:               time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, d.AuthorityVersionUsed)
	assert.Equal(t, "researcher-9", d.CreatedBy)
	assert.Equal(t, []string{"alignment"}, h.hooks.Derivatives)

	_, err = h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   owner,
		Patch:     types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesNo)},
	})
	require.NoError(t, err)

	stored := h.reload(t, s.ID)
	require.Len(t, stored.Derivatives, 1)
	assert.Equal(t, 2, stored.Derivatives[0].AuthorityVersionUsed)
	assert.True(t, types.IsStale(stored.Derivatives[0], stored))
	assert.Equal(t, []string{other}, []string(stored.Derivatives[0].LinkedSessions))
}

func TestCommunityScopedDerivatives(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, &types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesCommunity)})

	_, err := h.agg.RecordDerivative(h.ctx, types.RecordDerivativeInput{SessionID: s.ID, ActorID: owner, Type: types.DerivativeCluster})
	assert.True(t, domainagg.IsCode(err, domainagg.CodePermissionDenied))

	d, err := h.agg.RecordDerivative(h.ctx, types.RecordDerivativeInput{
		SessionID:      s.ID,
		ActorID:        owner,
		Type:           types.DerivativeCluster,
		CommunityScope: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, d.AuthorityVersionUsed)
}

func TestDerivativesFromStrangersRequireReadAccess(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, &types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesYes)})

	_, err := h.agg.RecordDerivative(h.ctx, types.RecordDerivativeInput{SessionID: s.ID, ActorID: "lab-7", Type: types.DerivativeQTC})
	require.True(t, domainagg.IsCode(err, domainagg.CodeNotFound), "got %v", err)
	assert.Empty(t, h.reload(t, s.ID).Derivatives)

	_, err = h.agg.GrantDelegation(h.ctx, types.DelegationInput{SessionID: s.ID, ActorID: owner, DelegateID: "lab-7"})
	require.NoError(t, err)
	d, err := h.agg.RecordDerivative(h.ctx, types.RecordDerivativeInput{SessionID: s.ID, ActorID: "lab-7", Type: types.DerivativeQTC})
	require.NoError(t, err)
	assert.Equal(t, "lab-7", d.CreatedBy)
}

func TestRefusedCommitLeavesLedgerUntouched(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)

	runner := &aggtest.FaultyTxRunner{DB: h.db, FailAfterBody: errors.New("commit refused")}
	faulty := h.withRunner(t, runner)
	_, err := faulty.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   owner,
		Patch:     types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesYes)},
	})
	require.Error(t, err)
	_, err = faulty.Withdraw(h.ctx, types.TransitionInput{SessionID: s.ID, ActorID: owner})
	require.Error(t, err)

	stored := h.reload(t, s.ID)
	assert.Equal(t, 1, stored.CurrentAuthorityVersion)
	assert.Len(t, stored.AuthorityVersions, 1)
	assert.Equal(t, types.StatusDeposited, stored.Status)
	calls, committed, rolledBack := runner.Stats()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, committed)
	assert.Equal(t, 2, rolledBack)

	v, err := h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   owner,
		Patch:     types.AuthorityPatch{DerivativesPermission: ptr(types.DerivativesYes)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
}

func TestWithdrawIsTerminal(t *testing.T) {
	h := newHarness(t)
	s := h.deposited(t, nil)

	s, err := h.agg.Withdraw(h.ctx, types.TransitionInput{SessionID: s.ID, ActorID: owner})
	require.NoError(t, err)
	assert.Equal(t, types.StatusArchived, s.Status)

	_, err = h.agg.Withdraw(h.ctx, types.TransitionInput{SessionID: s.ID, ActorID: owner})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidTransition))

	_, err = h.agg.AppendAuthorityVersion(h.ctx, types.AppendAuthorityInput{
		SessionID: s.ID,
		ActorID:   owner,
		Patch:     types.AuthorityPatch{EvidenceVisibility: ptr(types.VisibilityPublic)},
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidTransition))

	_, err = h.agg.RequestReview(h.ctx, types.ReviewInput{SessionID: s.ID, ActorID: owner, Reason: "late flag"})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvalidTransition))

	stored := h.reload(t, s.ID)
	assert.Equal(t, types.StatusArchived, stored.Status)
	assert.Len(t, stored.AuthorityVersions, 1)
}

func TestAttachMediaSetsEvidentiaryVideo(t *testing.T) {
	h := newHarness(t)
	s, err := h.agg.CreateDraft(h.ctx, types.CreateDraftInput{ContributorID: owner})
	require.NoError(t, err)

	locator := "gs://archive-media/sessions/" + s.ID.String() + "/1-take.mp4"
	_, err = h.agg.AttachMedia(h.ctx, types.AttachMediaInput{SessionID: s.ID, ActorID: owner, Locator: locator})
	require.NoError(t, err)
	assert.Equal(t, locator, h.reload(t, s.ID).EvidentiaryBody.VideoURL)

	_, err = h.agg.AttachMedia(h.ctx, types.AttachMediaInput{SessionID: s.ID, ActorID: owner})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}

func TestMissingActorIsValidationError(t *testing.T) {
	h := newHarness(t)
	_, err := h.agg.RequestReview(h.ctx, types.ReviewInput{SessionID: uuid.New()})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}
