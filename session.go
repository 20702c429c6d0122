package dbauth

import (
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// MemorySessionStoreConfig defines the options of the default session store.
type MemorySessionStoreConfig struct {
	// CookieName is the name of the session identifier cookie.
	CookieName string

	// CookieSecure forces the Secure flag. Requests that arrived over TLS
	// (or behind a proxy announcing https) get the flag regardless.
	CookieSecure bool

	// Expiration is the idle lifetime of a session. Zero keeps sessions
	// until logout. Expired entries are pruned on access; there is no
	// background reaper.
	Expiration time.Duration
}

// MemorySessionStore keeps session state in process memory keyed by an
// opaque identifier carried in a cookie. The store does not arbitrate
// concurrent requests for the same session identifier; last write wins.
type MemorySessionStore struct {
	cfg      MemorySessionStoreConfig
	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	user      Record
	hasUser   bool
	updatedAt int64
	touchedAt time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore(config ...MemorySessionStoreConfig) *MemorySessionStore {
	cfg := MemorySessionStoreConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionName
	}

	return &MemorySessionStore{
		cfg:      cfg,
		sessions: map[string]*sessionState{},
	}
}

// Get resolves the request's session, creating one with safe cookie defaults
// when the client has none yet.
func (s *MemorySessionStore) Get(c router.Context) (Session, error) {
	now := time.Now()

	s.mu.Lock()
	if id := c.Cookies(s.cfg.CookieName); id != "" {
		if state, ok := s.sessions[id]; ok {
			if s.expired(state, now) {
				delete(s.sessions, id)
			} else {
				state.touchedAt = now
				s.mu.Unlock()
				return &memorySession{store: s, ctx: c, id: id}, nil
			}
		}
	}

	id := uuid.NewString()
	s.sessions[id] = &sessionState{touchedAt: now}
	s.mu.Unlock()

	s.writeCookie(c, id)
	return &memorySession{store: s, ctx: c, id: id}, nil
}

func (s *MemorySessionStore) expired(state *sessionState, now time.Time) bool {
	if s.cfg.Expiration <= 0 {
		return false
	}
	return now.Sub(state.touchedAt) > s.cfg.Expiration
}

// writeCookie is best effort: response cookies that can no longer be set
// (committed responses) fail silently inside the transport.
func (s *MemorySessionStore) writeCookie(c router.Context, id string) {
	cookie := &router.Cookie{
		Name:     s.cfg.CookieName,
		Value:    id,
		HTTPOnly: true,
		SameSite: "Lax",
		Secure:   s.cfg.CookieSecure || requestIsTLS(c),
	}
	if s.cfg.Expiration > 0 {
		cookie.Expires = time.Now().Add(s.cfg.Expiration)
	}
	c.Cookie(cookie)
}

func (s *MemorySessionStore) expireCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		SameSite: "Lax",
		Secure:   s.cfg.CookieSecure || requestIsTLS(c),
	})
}

func requestIsTLS(c router.Context) bool {
	return strings.EqualFold(c.Header("X-Forwarded-Proto"), "https")
}

// memorySession binds a session identifier to the request that carried it.
type memorySession struct {
	store *MemorySessionStore
	ctx   router.Context
	id    string
}

var _ Session = (*memorySession)(nil)

func (m *memorySession) ID() string {
	return m.id
}

func (m *memorySession) User() (Record, bool) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	state, ok := m.store.sessions[m.id]
	if !ok || !state.hasUser {
		return nil, false
	}
	return state.user, true
}

func (m *memorySession) SetUser(user Record) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	state, ok := m.store.sessions[m.id]
	if !ok {
		return
	}
	state.user = user
	state.hasUser = true
}

func (m *memorySession) DeleteUser() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if state, ok := m.store.sessions[m.id]; ok {
		state.user = nil
		state.hasUser = false
	}
}

func (m *memorySession) UpdatedAt() int64 {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if state, ok := m.store.sessions[m.id]; ok {
		return state.updatedAt
	}
	return 0
}

func (m *memorySession) SetUpdatedAt(epoch int64) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if state, ok := m.store.sessions[m.id]; ok {
		state.updatedAt = epoch
	}
}

// Regenerate moves the session state under a fresh identifier and re-issues
// the cookie. Called on every successful login, registration and password
// change to defeat session fixation.
func (m *memorySession) Regenerate() error {
	m.store.mu.Lock()

	state, ok := m.store.sessions[m.id]
	if !ok {
		state = &sessionState{touchedAt: time.Now()}
	} else {
		delete(m.store.sessions, m.id)
	}

	id := uuid.NewString()
	m.store.sessions[id] = state
	m.id = id
	m.store.mu.Unlock()

	m.store.writeCookie(m.ctx, id)
	return nil
}

// Destroy removes the session state entirely and expires the cookie.
func (m *memorySession) Destroy() error {
	m.store.mu.Lock()
	delete(m.store.sessions, m.id)
	m.store.mu.Unlock()

	m.store.expireCookie(m.ctx)
	return nil
}

// detachedSession holds session state for the lifetime of a single request.
// It backs protocol runs when the store cannot supply a session; nothing it
// holds survives the response.
type detachedSession struct {
	id        string
	user      Record
	hasUser   bool
	updatedAt int64
}

var _ Session = (*detachedSession)(nil)

// NewDetachedSession returns a session with no store behind it. The
// middleware falls back to one when session initialization fails; callers
// driving the Gate directly can use it the same way.
func NewDetachedSession() Session {
	return &detachedSession{id: uuid.NewString()}
}

func (d *detachedSession) ID() string {
	return d.id
}

func (d *detachedSession) User() (Record, bool) {
	if !d.hasUser {
		return nil, false
	}
	return d.user, true
}

func (d *detachedSession) SetUser(user Record) {
	d.user = user
	d.hasUser = true
}

func (d *detachedSession) DeleteUser() {
	d.user = nil
	d.hasUser = false
}

func (d *detachedSession) UpdatedAt() int64 {
	return d.updatedAt
}

func (d *detachedSession) SetUpdatedAt(epoch int64) {
	d.updatedAt = epoch
}

func (d *detachedSession) Regenerate() error {
	d.id = uuid.NewString()
	return nil
}

func (d *detachedSession) Destroy() error {
	d.DeleteUser()
	d.updatedAt = 0
	return nil
}
