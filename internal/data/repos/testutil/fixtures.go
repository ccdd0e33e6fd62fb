package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
)

// CompleteDescriptive fills every field deposit requires.
func CompleteDescriptive() types.DescriptivePatch {
	return types.DescriptivePatch{
		Provenance: &types.Provenance{Role: types.RoleLearning, Sentence: "learned at the community centre"},
		Intent:     &types.Intent{Purposes: []types.IntentOption{types.IntentPreservation}},
		Context:    &types.SessionContext{Setting: types.SettingStudio, Function: types.FunctionPractice},
		CommunityAuthority: &types.CommunityAuthority{
			Type: types.AuthorizationOwn,
		},
	}
}

// SeedDraft writes a complete draft with an empty ledger.
func SeedDraft(tb testing.TB, ctx context.Context, tx *gorm.DB, contributorID string) *types.Session {
	tb.Helper()
	now := time.Now().UTC()
	s, err := types.NewDraft(uuid.New(), contributorID, now)
	if err != nil {
		tb.Fatalf("new draft: %v", err)
	}
	if err := s.UpdateDescriptive(CompleteDescriptive(), now); err != nil {
		tb.Fatalf("descriptive: %v", err)
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

// SeedDeposited writes a deposited session whose ledger holds the default
// version 1.
func SeedDeposited(tb testing.TB, ctx context.Context, tx *gorm.DB, contributorID string) *types.Session {
	tb.Helper()
	now := time.Now().UTC()
	s, err := types.NewDraft(uuid.New(), contributorID, now)
	if err != nil {
		tb.Fatalf("new draft: %v", err)
	}
	if err := s.UpdateDescriptive(CompleteDescriptive(), now); err != nil {
		tb.Fatalf("descriptive: %v", err)
	}
	if err := s.Deposit(nil, now); err != nil {
		tb.Fatalf("deposit: %v", err)
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	for i := range s.AuthorityVersions {
		if err := tx.WithContext(ctx).Create(&s.AuthorityVersions[i]).Error; err != nil {
			tb.Fatalf("seed authority version: %v", err)
		}
	}
	return s
}
