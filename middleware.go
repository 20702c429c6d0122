package dbauth

import (
	"encoding/json"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// New creates the authentication middleware. Requests matching one of the
// five recognized operations are terminated here with a success or error
// payload; everything else passes through the authentication gate.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)
	gate := NewGate(cfg)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			// Session context is ensured before any protocol runs so the
			// cookie goes out with the response. Store failures are not
			// fatal; the protocols run against a request-scoped session
			// that cannot persist.
			sess, err := cfg.Store.Get(c)
			if err != nil || sess == nil {
				if err != nil {
					cfg.Logger.Error("session init failed: %v", err)
				}
				sess = NewDetachedSession()
			}

			method := c.Method()
			segment := firstPathSegment(c.Path())

			if method == "POST" {
				switch segment {
				case "register":
					user, err := gate.Register(c.Context(), sess, parseBody(c))
					return respond(c, cfg, user, err)
				case "login":
					user, err := gate.Login(c.Context(), sess, parseBody(c))
					return respond(c, cfg, user, err)
				case "password":
					user, err := gate.ChangePassword(c.Context(), sess, parseBody(c))
					return respond(c, cfg, user, err)
				case "logout":
					user, err := gate.Logout(sess)
					return respond(c, cfg, user, err)
				}
			}

			if method == "GET" && segment == "me" {
				user, err := gate.Me(c.Context(), sess)
				return respond(c, cfg, user, err)
			}

			if err := gate.Allow(sess); err != nil {
				return cfg.Responder.Error(c, err)
			}

			return c.Next()
		}
	}
}

func respond(c router.Context, cfg Config, user Record, err error) error {
	if err != nil {
		return cfg.Responder.Error(c, err)
	}
	return cfg.Responder.Success(c, user)
}

// firstPathSegment extracts the leading path segment, matched exactly and
// case sensitively against the recognized operations.
func firstPathSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// parseBody reads the request body as a flat key-value object. JSON bodies
// are decoded as-is; anything else falls back to form decoding so HTML form
// logins keep working.
func parseBody(c router.Context) Record {
	raw := strings.TrimSpace(string(c.Body()))
	if raw == "" {
		return Record{}
	}

	if strings.HasPrefix(raw, "{") {
		body := Record{}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return Record{}
		}
		return body
	}

	body := Record{}
	if values, err := url.ParseQuery(raw); err == nil {
		for key, vals := range values {
			if len(vals) > 0 {
				body[key] = vals[0]
			}
		}
	}
	return body
}

// jsonResponder is the default response framing: the user mapping on
// success, {code, message, details} on failure, with the rich error's HTTP
// code as the status.
type jsonResponder struct {
	logger Logger
}

var _ Responder = (*jsonResponder)(nil)

func (r *jsonResponder) Success(c router.Context, record Record) error {
	return c.JSON(router.StatusOK, record)
}

func (r *jsonResponder) Error(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected error").
			WithCode(goerrors.CodeInternal)
	}

	r.logger.Info(
		"auth error: %s text_code=%s details=%s",
		richErr.Message,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"code":    richErr.TextCode,
		"message": richErr.Message,
		"details": richErr.Metadata,
	})
}
