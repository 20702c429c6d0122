package dbauth

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Gate drives the authentication protocols against the Reflection and
// Repository collaborators. It is transport free; the bundled middleware is
// one caller, tests and other transports can invoke the methods directly.
type Gate struct {
	cfg        Config
	reflection Reflection
	repo       Repository
	logger     Logger

	decoyOnce sync.Once
	decoyHash string
}

func NewGate(config ...Config) *Gate {
	cfg := configDefault(config...)

	if cfg.Reflection == nil {
		panic("dbauth: Config.Reflection is required")
	}

	if cfg.Repository == nil {
		panic("dbauth: Config.Repository is required")
	}

	return &Gate{
		cfg:        cfg,
		reflection: cfg.Reflection,
		repo:       cfg.Repository,
		logger:     cfg.Logger,
	}
}

// Config returns the resolved configuration.
func (g *Gate) Config() Config {
	return g.cfg
}

func (g *Gate) credentials(body Record) (username, password, newPassword string) {
	return body.GetString(g.cfg.UsernameFormField),
		body.GetString(g.cfg.PasswordFormField),
		body.GetString(g.cfg.NewPasswordFormField)
}

// Register creates a new user row. Preconditions run in order and the first
// failure wins: registration enabled, username non-empty, password length,
// username bounds, username pattern, and the uniqueness pre-check.
func (g *Gate) Register(ctx context.Context, sess Session, body Record) (Record, error) {
	username, password, _ := g.credentials(body)

	if !g.cfg.registrationEnabled() {
		return nil, errAuthenticationFailed(username)
	}

	if strings.TrimSpace(username) == "" {
		return nil, errUsernameEmpty()
	}

	if len(password) < g.cfg.PasswordLength {
		return nil, errPasswordTooShort(g.cfg.PasswordLength)
	}

	if err := g.validateUsername(username); err != nil {
		return nil, err
	}

	table, err := g.resolveTable(ctx, g.cfg.UsersTable)
	if err != nil {
		return nil, err
	}

	columns := g.cfg.returnedColumns(table)

	existing, err := g.repo.SelectAll(ctx, table, columns, g.cfg.UsernameColumn, username, 1)
	if err != nil {
		return nil, storageError(err, "username uniqueness lookup failed")
	}
	if len(existing) > 0 {
		return nil, errUserAlreadyExists(username)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, errInputValidation(err.Error())
	}

	// The uniqueness pre-check only covers the username column. Other
	// unique columns seeded from the body surface as a storage violation,
	// translated below.
	if err := g.repo.CreateSingle(ctx, table, g.registrationRow(table, body, username, hash)); err != nil {
		if IsDuplicateKey(err) {
			return nil, errDuplicateKey(err.Error())
		}
		return nil, errInputValidation(err.Error())
	}

	rows, err := g.repo.SelectAll(ctx, table, columns, g.cfg.UsernameColumn, username, 1)
	if err != nil {
		return nil, storageError(err, "reloading registered user failed")
	}
	if len(rows) == 0 {
		return nil, errAuthenticationFailed(username)
	}

	user := rows[0].Clone()
	delete(user, g.cfg.PasswordColumn)

	if g.cfg.LoginAfterRegistration {
		g.establishSession(sess, user)
	}

	return user, nil
}

// Login verifies the supplied credentials against the login table and
// establishes a session on success.
func (g *Gate) Login(ctx context.Context, sess Session, body Record) (Record, error) {
	username, password, _ := g.credentials(body)

	table, err := g.resolveTable(ctx, g.cfg.LoginTable)
	if err != nil {
		return nil, err
	}

	columns := g.cfg.returnedColumns(table)

	rows, err := g.repo.SelectAll(ctx, table, columns, g.cfg.UsernameColumn, username, 1)
	if err != nil {
		return nil, storageError(err, "login lookup failed")
	}

	for _, row := range rows {
		if ComparePasswordAndHash(password, row.GetString(g.cfg.PasswordColumn)) != nil {
			continue
		}

		user := row.Clone()
		delete(user, g.cfg.PasswordColumn)
		g.establishSession(sess, user)
		return user, nil
	}

	if len(rows) == 0 {
		// Unknown usernames pay the same hash comparison as wrong passwords
		// so response timing does not reveal whether the row exists.
		_ = ComparePasswordAndHash(password, g.decoy())
	}

	return nil, errAuthenticationFailed(username)
}

// decoy is a throwaway hash used to keep failed logins constant-cost.
func (g *Gate) decoy() string {
	g.decoyOnce.Do(func() {
		g.decoyHash = RandomPasswordHash()
	})
	return g.decoyHash
}

// ChangePassword rotates the password of the currently authenticated user.
// The supplied username must match the session user and the current password
// must verify against the stored hash.
func (g *Gate) ChangePassword(ctx context.Context, sess Session, body Record) (Record, error) {
	username, password, newPassword := g.credentials(body)

	current, ok := sess.User()
	if !ok || username != current.GetString(g.cfg.UsernameColumn) {
		return nil, errAuthenticationFailed(username)
	}

	if len(newPassword) < g.cfg.PasswordLength {
		return nil, errPasswordTooShort(g.cfg.PasswordLength)
	}

	table, err := g.resolveTable(ctx, g.cfg.UsersTable)
	if err != nil {
		return nil, err
	}

	pk := table.Pk()
	columns := g.cfg.returnedColumns(table)

	// The row update needs the primary key even when the caller did not ask
	// for it; fetch it and strip it again below.
	fetchColumns := columns
	pkRequested := slices.Contains(columns, pk)
	if !pkRequested {
		fetchColumns = append(slices.Clone(columns), pk)
	}

	rows, err := g.repo.SelectAll(ctx, table, fetchColumns, g.cfg.UsernameColumn, username, 1)
	if err != nil {
		return nil, storageError(err, "password change lookup failed")
	}

	for _, row := range rows {
		if ComparePasswordAndHash(password, row.GetString(g.cfg.PasswordColumn)) != nil {
			continue
		}

		if err := sess.Regenerate(); err != nil {
			g.logger.Error("session regenerate failed: %v", err)
		}

		hash, err := HashPassword(newPassword)
		if err != nil {
			return nil, errInputValidation(err.Error())
		}

		if _, err := g.repo.UpdateSingle(ctx, table, Record{g.cfg.PasswordColumn: hash}, row[pk]); err != nil {
			return nil, storageError(err, "password update failed")
		}

		user := row.Clone()
		delete(user, g.cfg.PasswordColumn)
		if !pkRequested {
			delete(user, pk)
		}
		return user, nil
	}

	return nil, errAuthenticationFailed(username)
}

// Logout destroys the session and returns the user it held.
func (g *Gate) Logout(sess Session) (Record, error) {
	user, ok := sess.User()
	if !ok {
		return nil, errAuthenticationRequired()
	}

	sess.DeleteUser()
	if err := sess.Destroy(); err != nil {
		g.logger.Error("session destroy failed: %v", err)
	}

	return user, nil
}

// Me returns the session user, re-fetching it from storage when the
// configured refresh interval has elapsed.
func (g *Gate) Me(ctx context.Context, sess Session) (Record, error) {
	user, ok := sess.User()
	if !ok {
		return nil, errAuthenticationRequired()
	}

	refreshAfter := int64(g.cfg.RefreshSession) * 60
	if refreshAfter <= 0 || time.Now().Unix() <= sess.UpdatedAt()+refreshAfter {
		return user, nil
	}

	table, err := g.resolveTable(ctx, g.cfg.LoginTable)
	if err != nil {
		return nil, err
	}

	fresh, err := g.repo.SelectSingle(ctx, table, g.cfg.returnedColumns(table), user[table.Pk()])
	if err != nil {
		return nil, storageError(err, "session refresh fetch failed")
	}

	refreshed := fresh.Clone()
	delete(refreshed, g.cfg.PasswordColumn)
	sess.SetUpdatedAt(time.Now().Unix())
	sess.SetUser(refreshed)

	return refreshed, nil
}

// Allow implements the passthrough policy for unrecognized paths.
func (g *Gate) Allow(sess Session) error {
	if sess != nil {
		if _, ok := sess.User(); ok {
			return nil
		}
	}

	if g.cfg.Mode == defaultMode {
		return errAuthenticationRequired()
	}

	return nil
}

func (g *Gate) establishSession(sess Session, user Record) {
	if err := sess.Regenerate(); err != nil {
		g.logger.Error("session regenerate failed: %v", err)
	}
	sess.SetUpdatedAt(time.Now().Unix())
	sess.SetUser(user)
}

func (g *Gate) resolveTable(ctx context.Context, name string) (*Table, error) {
	table, err := g.reflection.Table(ctx, name)
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("resolving table %q failed", name))
	}

	if !table.HasColumn(g.cfg.UsernameColumn) {
		return nil, schemaError(table.Name, g.cfg.UsernameColumn)
	}

	if !table.HasColumn(g.cfg.PasswordColumn) {
		return nil, schemaError(table.Name, g.cfg.PasswordColumn)
	}

	if table.Pk() == "" {
		return nil, goerrors.New("table has no resolvable primary key", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"table": table.Name})
	}

	return table, nil
}

func schemaError(table, column string) *goerrors.Error {
	return goerrors.New("required column missing from table schema", goerrors.CategoryInternal).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"table": table, "column": column})
}

// validateUsername runs the length and pattern rules one at a time so the
// first violation decides the reported reason.
func (g *Gate) validateUsername(username string) error {
	if err := validation.Validate(username, validation.Length(g.cfg.UsernameMinLength, 0)); err != nil {
		return errInputValidation(fmt.Sprintf(
			"%s [ Username length must be at least %d characters.]", username, g.cfg.UsernameMinLength,
		))
	}

	if err := validation.Validate(username, validation.Length(0, g.cfg.UsernameMaxLength)); err != nil {
		return errInputValidation(fmt.Sprintf(
			"%s [ Username length must not exceed %d characters.]", username, g.cfg.UsernameMaxLength,
		))
	}

	if err := validation.Validate(username, validation.Match(g.cfg.usernameRe)); err != nil {
		return errInputValidation(fmt.Sprintf(
			"%s [ Username contains disallowed characters.]", username,
		))
	}

	return nil
}

// registrationRow builds the insert row: the seed template is merged over the
// request body, keys are filtered to the table schema, credentials columns
// are forced, and every other string value is escaped for safe storage.
func (g *Gate) registrationRow(table *Table, body Record, username, hash string) Record {
	merged := Record{}
	for k, v := range body {
		merged[k] = v
	}
	for k, v := range g.cfg.registerSeed {
		merged[k] = v
	}

	data := Record{}
	for k, v := range merged {
		if !table.HasColumn(k) {
			continue
		}

		switch k {
		case g.cfg.UsernameColumn, g.cfg.PasswordColumn:
			// forced below
		default:
			if s, ok := v.(string); ok {
				data[k] = html.EscapeString(s)
			} else {
				data[k] = v
			}
		}
	}

	data[g.cfg.UsernameColumn] = username
	data[g.cfg.PasswordColumn] = hash
	return data
}
