package dbauth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients. Each protocol outcome maps to exactly
// one of these; anything else is an internal storage failure.
const (
	TextCodeAuthenticationFailed   = "AUTHENTICATION_FAILED"
	TextCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	TextCodeUsernameEmpty          = "USERNAME_EMPTY"
	TextCodePasswordTooShort       = "PASSWORD_TOO_SHORT"
	TextCodeInputValidationFailed  = "INPUT_VALIDATION_FAILED"
	TextCodeUserAlreadyExists      = "USER_ALREADY_EXIST"
	TextCodeDuplicateKey           = "DUPLICATE_KEY_EXCEPTION"
)

// ErrMismatchedHashAndPassword is returned when a cleartext password does not
// match the stored hash. It never leaves the Gate; callers see
// AUTHENTICATION_FAILED instead.
var ErrMismatchedHashAndPassword = goerrors.New("hashed password does not match", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS")

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be an empty string", goerrors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD")

// errAuthenticationFailed covers bad credentials, disabled registration, and a
// missing re-fetched row. Unknown user and wrong password produce the same
// error on purpose to resist username enumeration.
func errAuthenticationFailed(username string) *goerrors.Error {
	return goerrors.New("authentication failed", goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthenticationFailed).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{"username": username})
}

func errAuthenticationRequired() *goerrors.Error {
	return goerrors.New("authentication required", goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthenticationRequired).
		WithCode(goerrors.CodeUnauthorized)
}

func errUsernameEmpty() *goerrors.Error {
	return goerrors.New("username must not be empty", goerrors.CategoryValidation).
		WithTextCode(TextCodeUsernameEmpty).
		WithCode(goerrors.CodeBadRequest)
}

func errPasswordTooShort(minLength int) *goerrors.Error {
	return goerrors.New("password too short", goerrors.CategoryValidation).
		WithTextCode(TextCodePasswordTooShort).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"minLength": minLength})
}

func errInputValidation(reason string) *goerrors.Error {
	return goerrors.New(reason, goerrors.CategoryValidation).
		WithTextCode(TextCodeInputValidationFailed).
		WithCode(goerrors.CodeBadRequest)
}

func errUserAlreadyExists(username string) *goerrors.Error {
	return goerrors.New("user already exists", goerrors.CategoryConflict).
		WithTextCode(TextCodeUserAlreadyExists).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"username": username})
}

func errDuplicateKey(storageMessage string) *goerrors.Error {
	return goerrors.New("duplicate key exception", goerrors.CategoryConflict).
		WithTextCode(TextCodeDuplicateKey).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"storage": storageMessage})
}

// storageError wraps repository and reflection failures that have no
// client-facing text code. These propagate as internal errors.
func storageError(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}

// ErrorTextCode extracts the text code from a rich error, or returns an empty
// string for plain errors.
func ErrorTextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}
