package archive

import (
	"fmt"
	"strings"

	"github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
)

func validationError(op, msg string) error {
	return aggregates.NewError(aggregates.CodeValidation, op, msg, nil)
}

func invalidActorError(op, actor string) error {
	return aggregates.NewError(aggregates.CodeInvalidActor, op,
		fmt.Sprintf("actor %q is neither the contributor nor a delegate", actor), nil)
}

func incompleteRecordError(op string, missing []string) error {
	return aggregates.NewError(aggregates.CodeIncompleteRecord, op,
		"missing required fields: "+strings.Join(missing, ", "), nil)
}

func emptyLedgerError(op string) error {
	return aggregates.NewError(aggregates.CodeEmptyLedger, op, "authority ledger has no versions", nil)
}

func permissionDeniedError(op, msg string) error {
	return aggregates.NewError(aggregates.CodePermissionDenied, op, msg, nil)
}

func notFoundError(op, msg string) error {
	return aggregates.NewError(aggregates.CodeNotFound, op, msg, nil)
}

func invalidTransitionError(op string, from, to SessionStatus) error {
	return aggregates.NewError(aggregates.CodeInvalidTransition, op,
		fmt.Sprintf("cannot move session from %q to %q", from, to), nil)
}

func archivedError(op string) error {
	return aggregates.NewError(aggregates.CodeInvalidTransition, op, "session is archived", nil)
}

func notDepositedError(op string) error {
	return aggregates.NewError(aggregates.CodeInvalidTransition, op, "session has not been deposited", nil)
}

func appendConflictError(op string, expected, current int) error {
	return aggregates.NewError(aggregates.CodeAppendConflict, op,
		fmt.Sprintf("expected authority version %d but ledger is at %d", expected, current), nil)
}

func invariantError(op, msg string) error {
	return aggregates.NewError(aggregates.CodeInvariantViolation, op, msg, nil)
}
