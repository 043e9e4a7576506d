//go:build !integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))

	s := truncate(strings.Repeat("é", 10), 5)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, "éé", s)
}

func TestClassify(t *testing.T) {
	missing := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "42P01", Message: `relation "billing_operations" does not exist`})
	err := classify(missing)
	assert.ErrorIs(t, err, domain.ErrJournalSchema)
	assert.Contains(t, err.Error(), "billing_operations")

	other := &pgconn.PgError{Code: "23502", Message: "null value"}
	assert.Same(t, error(other), classify(other))

	plain := errors.New("conn reset")
	assert.Equal(t, plain, classify(plain))
}

func TestRecord_RejectsOperationWithoutID(t *testing.T) {
	j := NewOperationJournal(nil)
	assert.ErrorIs(t, j.Record(context.Background(), nil), domain.ErrInvalidArgument)
	assert.ErrorIs(t, j.Record(context.Background(), &model.Operation{UserID: 1}), domain.ErrInvalidArgument)
}
