package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"selsup/crptgateway/internal/infrastructure/config"
	httperrors "selsup/crptgateway/internal/infrastructure/http"
)

// ContextKeyToken exposes the verified JWT token via request context.
type ContextKeyToken struct{}

var errInvalidToken = errors.New("invalid or expired token")

var allowedSigningMethods = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodES256.Alg(),
}

// JWTAuthenticator guards the gateway endpoints with bearer tokens verified
// against a remote JWKS. It has nothing to do with the CRPT token, which the
// client holds on its own.
type JWTAuthenticator struct {
	cfg        config.AuthSettings
	log        *slog.Logger
	keyfunc    jwt.Keyfunc
	cancel     context.CancelFunc
	bypassPath map[string]struct{}
}

func NewJWTAuthenticator(cfg config.AuthSettings, log *slog.Logger) (*JWTAuthenticator, error) {
	auth := &JWTAuthenticator{
		cfg:        cfg,
		log:        log,
		bypassPath: make(map[string]struct{}),
	}

	for _, path := range cfg.BypassPaths {
		if path != "" {
			auth.bypassPath[path] = struct{}{}
		}
	}

	if !cfg.Enabled {
		return auth, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	override := keyfunc.Override{
		RefreshInterval: 6 * time.Hour,
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(c context.Context, err error) {
				log.Error("failed to refresh JWKS", "url", url, "error", err)
			}
		},
		HTTPTimeout: 10 * time.Second,
	}

	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSetURI}, override)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to load JWKS: %w", err)
	}
	auth.keyfunc = jwks.Keyfunc
	auth.cancel = cancel

	return auth, nil
}

// Middleware enforces JWT validation on inbound requests. A valid token without
// the required scope gets 403.
func (a *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	if !a.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := a.verify(r)
		if err != nil {
			a.log.WarnContext(r.Context(), "token validation failed", "error", err, "path", r.URL.Path)
			httperrors.WriteError(w, http.StatusUnauthorized, "Authentication error", []string{err.Error()}, a.log)
			return
		}

		claims, _ := token.Claims.(jwt.MapClaims)
		if a.cfg.RequiredScope != "" && !hasScope(claims, a.cfg.RequiredScope) {
			a.log.WarnContext(r.Context(), "token lacks required scope", "scope", a.cfg.RequiredScope, "path", r.URL.Path)
			httperrors.WriteError(w, http.StatusForbidden, "Forbidden", []string{"token lacks scope " + a.cfg.RequiredScope}, a.log)
			return
		}

		if subject, err := claims.GetSubject(); err == nil && subject != "" {
			a.log.DebugContext(r.Context(), "request authenticated", "subject", subject)
		}

		ctx := context.WithValue(r.Context(), ContextKeyToken{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify extracts and validates the bearer token. Parse failures are reduced to
// one message so callers learn nothing about key material.
func (a *JWTAuthenticator) verify(r *http.Request) (*jwt.Token, error) {
	tokenString, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, a.keyfunc,
		jwt.WithIssuer(a.cfg.IssuerURI),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods(allowedSigningMethods),
	)
	if err != nil || !token.Valid {
		a.log.DebugContext(r.Context(), "jwt parse failed", "error", err)
		return nil, errInvalidToken
	}
	return token, nil
}

// hasScope accepts both the space-delimited "scope" claim and the "scp" list.
func hasScope(claims jwt.MapClaims, want string) bool {
	if scope, ok := claims["scope"].(string); ok && slices.Contains(strings.Fields(scope), want) {
		return true
	}
	switch scp := claims["scp"].(type) {
	case string:
		return slices.Contains(strings.Fields(scp), want)
	case []any:
		for _, v := range scp {
			if s, ok := v.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// Close stops background JWKS refreshers.
func (a *JWTAuthenticator) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *JWTAuthenticator) shouldBypass(path string) bool {
	_, ok := a.bypassPath[path]
	return ok
}

// TokenFromContext returns the verified token stored by Middleware.
func TokenFromContext(ctx context.Context) (*jwt.Token, bool) {
	token, ok := ctx.Value(ContextKeyToken{}).(*jwt.Token)
	return token, ok
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	return parts[1], nil
}
