package dbauth

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultSessionName is the default session cookie name.
const DefaultSessionName = "dbauth"

// DefaultUsernamePattern allows one or more Unicode letters, no digits or
// punctuation.
const DefaultUsernamePattern = `^\p{L}+$`

const (
	defaultUsernameFormField    = "username"
	defaultPasswordFormField    = "password"
	defaultNewPasswordFormField = "newPassword"
	defaultUsersTable           = "users"
	defaultUsernameColumn       = "username"
	defaultPasswordColumn       = "password"
	defaultUsernameMinLength    = 5
	defaultUsernameMaxLength    = 255
	defaultPasswordLength       = 12
	defaultMode                 = "required"
)

// Config defines the dbauth middleware options.
type Config struct {
	// Reflection resolves table schemas. Required.
	Reflection Reflection

	// Repository reads and writes user rows. Required.
	Repository Repository

	// Store resolves the request session. Defaults to an in-memory store
	// using SessionName as the cookie name.
	Store SessionStore

	// Responder frames success and error outcomes. Defaults to JSON.
	Responder Responder

	// Logger receives middleware diagnostics.
	Logger Logger

	// SessionName is the session cookie name used by the default store.
	SessionName string

	// UsernameFormField is the body field carrying the username.
	UsernameFormField string

	// PasswordFormField is the body field carrying the password.
	PasswordFormField string

	// NewPasswordFormField is the body field carrying the replacement
	// password on password changes.
	NewPasswordFormField string

	// UsersTable is the table used for registration and password changes.
	UsersTable string

	// LoginTable is the table used for login lookups. It may be a view
	// joining auxiliary tables; it must include the username and password
	// columns. Defaults to UsersTable.
	LoginTable string

	// UsernameColumn and PasswordColumn name the schema columns.
	UsernameColumn string
	PasswordColumn string

	// UsernamePattern is the validation regex for registration usernames.
	UsernamePattern string

	// UsernameMinLength and UsernameMaxLength bound the username length.
	// When misconfigured with min greater than max the two are swapped.
	UsernameMinLength int
	UsernameMaxLength int

	// PasswordLength is the minimum password length.
	PasswordLength int

	// RegisterUser is a JSON seed object merged into new row data. An empty
	// string disables registration.
	RegisterUser string

	// LoginAfterRegistration establishes a session immediately after a
	// successful registration.
	LoginAfterRegistration bool

	// ReturnedColumns is a comma separated allow-list of columns returned to
	// the client. Empty means all columns.
	ReturnedColumns string

	// RefreshSession re-fetches the session user on GET /me after this many
	// minutes. Zero disables refreshing.
	RefreshSession int

	// Mode governs passthrough gating for unrecognized paths. "required"
	// rejects unauthenticated requests; any other value lets them through.
	Mode string

	// CookieSecure forces the Secure flag on session cookies. When false the
	// flag is still set for requests that arrived over TLS.
	CookieSecure bool

	usernameRe   *regexp.Regexp
	registerSeed Record
}

// configDefault resolves the middleware options once per instance.
func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	if cfg.SessionName == "" {
		cfg.SessionName = DefaultSessionName
	}

	if cfg.UsernameFormField == "" {
		cfg.UsernameFormField = defaultUsernameFormField
	}

	if cfg.PasswordFormField == "" {
		cfg.PasswordFormField = defaultPasswordFormField
	}

	if cfg.NewPasswordFormField == "" {
		cfg.NewPasswordFormField = defaultNewPasswordFormField
	}

	if cfg.UsersTable == "" {
		cfg.UsersTable = defaultUsersTable
	}

	if cfg.LoginTable == "" {
		cfg.LoginTable = cfg.UsersTable
	}

	if cfg.UsernameColumn == "" {
		cfg.UsernameColumn = defaultUsernameColumn
	}

	if cfg.PasswordColumn == "" {
		cfg.PasswordColumn = defaultPasswordColumn
	}

	if cfg.UsernamePattern == "" {
		cfg.UsernamePattern = DefaultUsernamePattern
	}

	if cfg.UsernameMinLength == 0 {
		cfg.UsernameMinLength = defaultUsernameMinLength
	}

	if cfg.UsernameMaxLength == 0 {
		cfg.UsernameMaxLength = defaultUsernameMaxLength
	}

	if cfg.UsernameMinLength > cfg.UsernameMaxLength {
		cfg.UsernameMinLength, cfg.UsernameMaxLength = cfg.UsernameMaxLength, cfg.UsernameMinLength
	}

	if cfg.PasswordLength == 0 {
		cfg.PasswordLength = defaultPasswordLength
	}

	if cfg.Mode == "" {
		cfg.Mode = defaultMode
	}

	cfg.usernameRe = regexp.MustCompile(cfg.UsernamePattern)
	cfg.registerSeed = parseRegisterSeed(cfg.RegisterUser)

	if cfg.Store == nil {
		cfg.Store = NewMemorySessionStore(MemorySessionStoreConfig{
			CookieName:   cfg.SessionName,
			CookieSecure: cfg.CookieSecure,
		})
	}

	if cfg.Responder == nil {
		cfg.Responder = &jsonResponder{logger: cfg.Logger}
	}

	return cfg
}

// registrationEnabled reports whether the RegisterUser option was set.
func (c Config) registrationEnabled() bool {
	return strings.TrimSpace(c.RegisterUser) != ""
}

// returnedColumns resolves the column allow-list against a table, always
// re-adding the password column so credential checks can run. Callers strip
// it again before responding.
func (c Config) returnedColumns(table *Table) []string {
	if strings.TrimSpace(c.ReturnedColumns) == "" {
		return table.ColumnNames()
	}

	seen := map[string]bool{}
	columns := []string{}
	for _, name := range strings.Split(c.ReturnedColumns, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, name)
	}

	if !seen[c.PasswordColumn] {
		columns = append(columns, c.PasswordColumn)
	}

	return columns
}

// parseRegisterSeed decodes the seed template. A non-empty value that is not
// a JSON object ("1" is a common way to just enable registration) yields an
// empty seed, leaving the request body as the only row source.
func parseRegisterSeed(raw string) Record {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	seed := Record{}
	if err := json.Unmarshal([]byte(raw), &seed); err != nil {
		return Record{}
	}
	return seed
}
