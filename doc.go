// Package dbauth provides a database-backed, session-cookie authentication
// gate that sits in front of a generic CRUD API.
//
// The middleware intercepts a small set of well known endpoints (POST
// /login, /register, /password, /logout and GET /me) and otherwise enforces
// that an authenticated session exists before delegating to the next handler.
//
// Collaborators are capability interfaces with adapters:
//   - Reflection resolves a table name into its column schema.
//   - Repository reads and writes rows by table name and column list. A
//     Bun-backed implementation ships in this package.
//   - SessionStore owns the per-client session state. The default store keeps
//     state in memory keyed by an opaque cookie identifier.
//
// The Gate type exposes the five protocols as plain methods so transports
// other than the bundled go-router middleware can drive them directly.
package dbauth
