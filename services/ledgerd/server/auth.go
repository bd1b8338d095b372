package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"proplend/crypto"
	nativecommon "proplend/native/common"
)

// AuthConfig configures bearer JWT validation.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type contextKey string

const (
	contextKeyCaller    contextKey = "ledgerd.caller"
	contextKeyRequestID contextKey = "ledgerd.request_id"
)

// Authenticator resolves the caller address from the bearer token subject.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
	nowFn  func() time.Time
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger,
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		nowFn:  time.Now,
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller address in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}
		caller, err := a.Authenticate(tokenString)
		if err != nil {
			a.logger.Warn("auth: token rejected", "error", err, "path", r.URL.Path)
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate validates tokenString and returns the address in its subject.
func (a *Authenticator) Authenticate(tokenString string) (crypto.Address, error) {
	if len(a.secret) == 0 {
		return crypto.Address{}, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithTimeFunc(a.nowFn),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return crypto.Address{}, err
	}
	if !token.Valid {
		return crypto.Address{}, errors.New("token invalid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return crypto.Address{}, errors.New("token subject missing")
	}
	addr, err := crypto.DecodeAddress(subject)
	if err != nil {
		return crypto.Address{}, err
	}
	return addr, nil
}

// CallerFrom returns the authenticated caller stored by Middleware.
func CallerFrom(ctx context.Context) (crypto.Address, error) {
	addr, ok := ctx.Value(contextKeyCaller).(crypto.Address)
	if !ok || addr.IsZero() {
		return crypto.Address{}, nativecommon.NewError(nativecommon.ErrUnauthorized, "caller not authenticated")
	}
	return addr, nil
}

// IssueToken signs a development token for subject. Tokens expire after ttl.
func IssueToken(secret []byte, subject crypto.Address, issuer, audience string, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
