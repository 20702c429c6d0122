package dbauth_test

import (
	"testing"

	"github.com/goliatone/go-dbauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	gate := newTestGate(newFakeRepo(), dbauth.Config{})
	cfg := gate.Config()

	assert.Equal(t, dbauth.DefaultSessionName, cfg.SessionName)
	assert.Equal(t, "username", cfg.UsernameFormField)
	assert.Equal(t, "password", cfg.PasswordFormField)
	assert.Equal(t, "newPassword", cfg.NewPasswordFormField)
	assert.Equal(t, "users", cfg.UsersTable)
	assert.Equal(t, "users", cfg.LoginTable, "login table falls back to the users table")
	assert.Equal(t, "username", cfg.UsernameColumn)
	assert.Equal(t, "password", cfg.PasswordColumn)
	assert.Equal(t, dbauth.DefaultUsernamePattern, cfg.UsernamePattern)
	assert.Equal(t, 5, cfg.UsernameMinLength)
	assert.Equal(t, 255, cfg.UsernameMaxLength)
	assert.Equal(t, 12, cfg.PasswordLength)
	assert.Equal(t, "required", cfg.Mode)
	assert.Empty(t, cfg.RegisterUser)
	assert.False(t, cfg.LoginAfterRegistration)
	assert.Zero(t, cfg.RefreshSession)

	require.NotNil(t, cfg.Store)
	require.NotNil(t, cfg.Responder)
	require.NotNil(t, cfg.Logger)
}

func TestConfigOverrides(t *testing.T) {
	gate := newTestGate(newFakeRepo(), dbauth.Config{
		SessionName:       "sid",
		UsersTable:        "accounts",
		UsernameFormField: "user",
		PasswordLength:    20,
		Mode:              "optional",
	})
	cfg := gate.Config()

	assert.Equal(t, "sid", cfg.SessionName)
	assert.Equal(t, "accounts", cfg.UsersTable)
	assert.Equal(t, "accounts", cfg.LoginTable)
	assert.Equal(t, "user", cfg.UsernameFormField)
	assert.Equal(t, 20, cfg.PasswordLength)
	assert.Equal(t, "optional", cfg.Mode)
}

func TestConfigSwapsInvertedUsernameBounds(t *testing.T) {
	gate := newTestGate(newFakeRepo(), dbauth.Config{
		UsernameMinLength: 50,
		UsernameMaxLength: 5,
	})
	cfg := gate.Config()

	assert.Equal(t, 5, cfg.UsernameMinLength)
	assert.Equal(t, 50, cfg.UsernameMaxLength)
}

func TestConfigSeparateLoginTable(t *testing.T) {
	gate := newTestGate(newFakeRepo(), dbauth.Config{
		UsersTable: "accounts",
		LoginTable: "login_view",
	})
	cfg := gate.Config()

	assert.Equal(t, "accounts", cfg.UsersTable)
	assert.Equal(t, "login_view", cfg.LoginTable)
}

func TestNewGateRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() {
		dbauth.NewGate(dbauth.Config{Repository: newFakeRepo()})
	})

	assert.Panics(t, func() {
		dbauth.NewGate(dbauth.Config{Reflection: testReflection()})
	})
}
