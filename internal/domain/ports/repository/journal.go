package repository

import (
	"context"

	"github.com/simonbarrel6/aakora/internal/domain/model"
)

// OperationJournal keeps an audit trail of terminal billing actions.
type OperationJournal interface {
	Record(ctx context.Context, op *model.Operation) error
}
