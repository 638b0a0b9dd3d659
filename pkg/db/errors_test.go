package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolationPgx(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "ux_memberships_user_condo"}

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "ux_memberships_user_condo"))
	assert.False(t, IsUniqueViolation(err, "ux_other_constraint"))
}

func TestIsUniqueViolationPgxWrapped(t *testing.T) {
	cause := &pgconn.PgError{Code: "23505", ConstraintName: "ux_memberships_user_condo"}
	err := fmt.Errorf("create membership: %w", cause)

	assert.True(t, IsUniqueViolation(err, "ux_memberships_user_condo"))
}

func TestIsUniqueViolationPgxOtherCode(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", ConstraintName: "fk_memberships_user"}

	assert.False(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "fk_memberships_user"))
}

func TestIsUniqueViolationPq(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "ux_memberships_user_condo"}

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "ux_memberships_user_condo"))
	assert.False(t, IsUniqueViolation(err, "ux_other_constraint"))
}

func TestIsUniqueViolationMessageFallback(t *testing.T) {
	sqliteErr := errors.New("UNIQUE constraint failed: memberships.user_id, memberships.condo_id")
	assert.True(t, IsUniqueViolation(sqliteErr, ""))

	textual := errors.New(`duplicate key value violates unique constraint "ux_memberships_user_condo"`)
	assert.True(t, IsUniqueViolation(textual, "ux_memberships_user_condo"))

	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
}

func TestIsUniqueViolationNil(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(nil, "ux_memberships_user_condo"))
}
