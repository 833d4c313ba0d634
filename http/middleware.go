package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/clubledger/objectgate"
)

// KeyLookup resolves a signing secret from a token's kid header.
type KeyLookup interface {
	Lookup(kid string) ([]byte, error)
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	// Secret is the HS256 signing key for tokens without a kid header.
	Secret []byte
	// Keys, when set, verifies tokens that carry a kid header.
	Keys KeyLookup
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// Claims are the token claims the gateway reads. sub is the principal id.
type Claims struct {
	Groups []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p objectgate.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by AuthMiddleware, or the
// anonymous principal when there is none.
func PrincipalFrom(ctx context.Context) objectgate.Principal {
	p, _ := ctx.Value(principalKey{}).(objectgate.Principal)
	return p
}

// bearerToken reads the token from the Authorization header, falling back
// to the token query parameter for clients such as <img> tags that cannot
// set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func (cfg AuthConfig) keyFunc(token *jwt.Token) (any, error) {
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		if cfg.Keys == nil {
			return nil, fmt.Errorf("kid %q: no key ring configured", kid)
		}
		return cfg.Keys.Lookup(kid)
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token has no kid and no default secret is configured")
	}
	return cfg.Secret, nil
}

// AuthMiddleware rejects requests without a valid HS256 token and stores
// the principal in the request context.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				HandleError(w, r, ErrMissingToken)
				return
			}

			var claims Claims
			_, err := parser.ParseWithClaims(raw, &claims, cfg.keyFunc)
			if err != nil {
				HandleError(w, r, fmt.Errorf("%w: %w", ErrInvalidToken, err))
				return
			}
			if claims.Subject == "" {
				HandleError(w, r, fmt.Errorf("%w: no subject", ErrInvalidToken))
				return
			}

			p := objectgate.Principal{ID: claims.Subject, Groups: claims.Groups}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequestLogger logs one line per request at debug level, and at warn
// level for server errors.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
