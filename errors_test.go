package dbauth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-dbauth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTextCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "rich error with text code",
			err: goerrors.New("boom", goerrors.CategoryAuth).
				WithTextCode(dbauth.TextCodeAuthenticationFailed),
			expected: dbauth.TextCodeAuthenticationFailed,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: "",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dbauth.ErrorTextCode(tt.err))
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "wrapped duplicate key",
			err:      fmt.Errorf("%w: UNIQUE constraint failed: users.username", dbauth.ErrDuplicateKey),
			expected: true,
		},
		{
			name:     "other storage error",
			err:      errors.New("connection reset"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dbauth.IsDuplicateKey(tt.err))
		})
	}
}

func TestStorageFailuresAreInternal(t *testing.T) {
	repo := newFakeRepo()
	repo.selectErr = errors.New("connection refused")

	gate := newTestGate(repo, dbauth.Config{})

	_, err := gate.Login(context.Background(), newFakeSession(), dbauth.Record{
		"username": "alice",
		"password": "whatever",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
	assert.Empty(t, richErr.TextCode, "internal failures carry no client text code")
	assert.Contains(t, err.Error(), "connection refused")
}
