package entitlement

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/oarkflow/entitlement/logger"
)

// Identity is the verified subject attached to a request context. It lives
// for exactly one request; there is no process-wide security context.
type Identity struct {
	SubjectID string
	Claims    map[string]any
	ExpiresAt time.Time
}

type identityContextKey struct{}

// WithIdentity returns a context carrying the verified identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the verified identity for the request, when
// one was attached. Anonymous requests report (nil, false).
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// Authenticate evaluates an Authorization header value. An absent header
// or one without a Bearer prefix yields an anonymous result (nil, nil). A
// present bearer token that fails verification yields a typed error: the
// caller must fail closed, never fall back to anonymous.
func (v *TokenVerifier) Authenticate(rawHeaderValue string) (*Identity, error) {
	if rawHeaderValue == "" || !strings.HasPrefix(rawHeaderValue, bearerPrefix) {
		return nil, nil
	}
	claims, err := v.Verify(rawHeaderValue[len(bearerPrefix):])
	if err != nil {
		return nil, err
	}
	return &Identity{
		SubjectID: claims.SubjectID,
		Claims:    claims.Raw,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// HTTPAuthOptions configures the request-authentication middleware.
// OnUnauthorized lets the application shape the rejection response; the
// default writes a bare 401.
type HTTPAuthOptions struct {
	Verifier       *TokenVerifier
	Logger         logger.Logger
	OnUnauthorized func(w http.ResponseWriter, r *http.Request, err error)
}

// NewHTTPAuthMiddleware returns a net/http handler wrapper that verifies
// bearer tokens and attaches the resulting identity to the request
// context. Requests without credentials proceed as anonymous; requests
// with a bad bearer token are terminated before the next handler runs.
// The bearer value itself is never logged.
func NewHTTPAuthMiddleware(opts *HTTPAuthOptions) func(next http.Handler) http.Handler {
	if opts == nil {
		opts = &HTTPAuthOptions{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	onUnauthorized := opts.OnUnauthorized
	if onUnauthorized == nil {
		onUnauthorized = func(w http.ResponseWriter, _ *http.Request, _ error) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Verifier == nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := opts.Verifier.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, ErrUnverifiable) {
					log.Error("token verification failed", "path", r.URL.Path, "error", err.Error())
				} else {
					log.Debug("token rejected", "path", r.URL.Path, "error", err.Error())
				}
				onUnauthorized(w, r, err)
				return
			}
			if id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
