package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
)

//go:embed schema.sql
var schemaSQL string

// maxDetail bounds the stored detail; raw billing bodies can be large.
const maxDetail = 2000

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

var _ repository.OperationJournal = (*OperationJournal)(nil)

// OperationJournal stores one row per terminal billing action.
type OperationJournal struct {
	pool *pgxpool.Pool
}

func NewOperationJournal(pool *pgxpool.Pool) *OperationJournal {
	return &OperationJournal{pool: pool}
}

// EnsureSchema creates the journal table when it does not exist yet.
func (r *OperationJournal) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (r *OperationJournal) Record(ctx context.Context, op *model.Operation) error {
	if op == nil || op.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO billing_operations (id, user_id, flow, nd, outcome, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, q,
		op.ID, op.UserID, string(op.Flow), op.ND, string(op.Outcome), truncate(op.Detail, maxDetail), op.CreatedAt)
	metrics.IncJournalWrite(err == nil)
	if err != nil {
		return fmt.Errorf("record operation %s: %w", op.ID, classify(err))
	}
	return nil
}

// classify maps a missing table to ErrJournalSchema so the log says what to fix.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w (run with database.ensure_schema): %s", domain.ErrJournalSchema, pgErr.Message)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
