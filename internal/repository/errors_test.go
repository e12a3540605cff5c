package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"go-chat-vault/internal/model"
)

func TestPgErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: pgUniqueViolation}

	err := pgError("insert user", unique)
	assert.True(t, isUniqueViolation(err))
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)

	err = pgError("find user", errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	err = pgError("find user", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestMongoErrorClassification(t *testing.T) {
	err := mongoError("find user", context.DeadlineExceeded)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	err = mongoError("find user", errors.New("bad filter"))
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)
}
