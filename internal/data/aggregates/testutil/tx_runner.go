package testutil

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/data/aggregates"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
)

// FaultyTxRunner runs aggregate writes in a real GORM transaction and can be
// told to fail before the body runs or after it succeeds. A failure after the
// body rolls back everything the aggregate wrote, which is how tests exercise
// a refused commit.
type FaultyTxRunner struct {
	DB *gorm.DB

	FailBeforeBody error
	FailAfterBody  error

	mu         sync.Mutex
	calls      int
	committed  int
	rolledBack int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.calls++
	failBefore, failAfter := r.FailBeforeBody, r.FailAfterBody
	r.mu.Unlock()

	if failBefore != nil {
		r.finish(false)
		return failBefore
	}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if fn != nil {
			if err := fn(dbctx.Context{Ctx: ctx, Tx: tx}); err != nil {
				return err
			}
		}
		return failAfter
	})
	r.finish(err == nil)
	return err
}

func (r *FaultyTxRunner) finish(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.committed++
	} else {
		r.rolledBack++
	}
}

// Stats reports how many transactions were attempted, committed and rolled back.
func (r *FaultyTxRunner) Stats() (calls, committed, rolledBack int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.committed, r.rolledBack
}
