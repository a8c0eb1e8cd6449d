package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const clientHeader = "X-Client-Id"

type AuthConfig struct {
	JWTSecret string
	// AllowClientHeader trusts X-Client-Id without a token. Development only.
	AllowClientHeader bool
}

// Principal is the authenticated client behind a request.
type Principal struct {
	ClientID string
	Source   string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// clientIDFromContext returns the caller identity or a 401 error. Every write
// operation goes through it.
func clientIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok && p.ClientID != "" {
		return p.ClientID, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

var (
	errNoSecret    = errors.New("jwt secret not configured")
	errMalformed   = errors.New("authorization header is not a bearer token")
	errMissingSubj = errors.New("token has no subject")
)

type authenticator struct {
	secret      []byte
	allowHeader bool
	parser      *jwt.Parser
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	return &authenticator{
		secret:      []byte(strings.TrimSpace(cfg.JWTSecret)),
		allowHeader: cfg.AllowClientHeader,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// principal resolves the request identity. ok is false for anonymous
// requests; err is set when credentials are present but unusable.
func (a *authenticator) principal(req *http.Request) (p Principal, ok bool, err error) {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		clientID, err := a.verify(authz)
		if err != nil {
			return Principal{}, false, err
		}
		return Principal{ClientID: clientID, Source: "jwt"}, true, nil
	}
	if id := strings.TrimSpace(req.Header.Get(clientHeader)); id != "" && a.allowHeader {
		return Principal{ClientID: id, Source: "header"}, true, nil
	}
	return Principal{}, false, nil
}

// verify checks an HS256 bearer token and returns its subject.
func (a *authenticator) verify(authz string) (string, error) {
	scheme, token, found := strings.Cut(authz, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", errMalformed
	}
	if len(a.secret) == 0 {
		return "", errNoSecret
	}
	var claims jwt.RegisteredClaims
	if _, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubj
	}
	return claims.Subject, nil
}

// newAuthMiddleware attaches a principal when an API request carries
// credentials. Anonymous requests pass through and handlers that write
// reject them; bad credentials are always a 401.
func newAuthMiddleware(basePath string, cfg AuthConfig, log zerolog.Logger) func(http.Handler) http.Handler {
	auth := newAuthenticator(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			p, ok, err := auth.principal(req)
			switch {
			case err != nil:
				log.Debug().Err(err).Str("path", req.URL.Path).Msg("credentials rejected")
				writeAPIError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
			case !ok:
				next.ServeHTTP(w, req)
			default:
				if p.Source == "header" {
					log.Warn().Str("client_id", p.ClientID).Msg("trusting X-Client-Id header without a token")
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), p)))
			}
		})
	}
}

// writeAPIError renders the error envelope outside huma handlers.
func writeAPIError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
