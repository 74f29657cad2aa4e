// internal/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoToken      = errors.New("no session token")
)

// Config holds authentication configuration
type Config struct {
	JWTSecret     string
	JWTExpiration int // in minutes
	CookieName    string
	APIKeys       []string // bcrypt hashes accepted on the data endpoint
	JudgeKeys     []string // bcrypt hashes accepted on simulation controls
	SecureCookie  bool
}

// AuthManager handles authentication and authorization
type AuthManager struct {
	config Config
	now    func() time.Time
}

// Claims represents JWT claims
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	jwt.StandardClaims
}

// User returns the operator the claims were issued to.
func (c *Claims) User() telemetry.User {
	return telemetry.User{ID: c.UserID, Email: c.Email}
}

type ctxKey struct{}

// NewAuthManager creates a new authentication manager
func NewAuthManager(config Config) *AuthManager {
	if config.CookieName == "" {
		config.CookieName = "helios_session"
	}
	if config.JWTExpiration <= 0 {
		config.JWTExpiration = 60
	}
	return &AuthManager{config: config, now: time.Now}
}

// GenerateJWT creates a session token for a verified operator
func (am *AuthManager) GenerateJWT(user telemetry.User) (string, error) {
	now := am.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(user.ID),
			ExpiresAt: now.Add(am.ttl()).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    "helios-watch",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(am.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates the JWT token
func (am *AuthManager) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(am.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (am *AuthManager) ttl() time.Duration {
	return time.Duration(am.config.JWTExpiration) * time.Minute
}

// ValidateAPIKey checks key against the configured feed producer hashes.
func (am *AuthManager) ValidateAPIKey(key string) bool {
	return matchAny(am.config.APIKeys, key)
}

// ValidateJudgeKey checks key against the configured simulation panel hashes.
func (am *AuthManager) ValidateJudgeKey(key string) bool {
	return matchAny(am.config.JudgeKeys, key)
}

func matchAny(hashes []string, key string) bool {
	if key == "" {
		return false
	}
	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(key)) == nil {
			return true
		}
	}
	return false
}

// HashKey creates a bcrypt hash suitable for the api_keys and judge_keys
// settings.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

// SetSessionCookie stores token in an HttpOnly cookie.
func (am *AuthManager) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     am.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(am.ttl().Seconds()),
		HttpOnly: true,
		Secure:   am.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (am *AuthManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     am.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   am.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromRequest reads the session token from the cookie or, failing
// that, a Bearer Authorization header.
func (am *AuthManager) SessionFromRequest(r *http.Request) (*Claims, error) {
	var token string
	if c, err := r.Cookie(am.config.CookieName); err == nil && c.Value != "" {
		token = c.Value
	} else if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		token = parts[1]
	}
	if token == "" {
		return nil, ErrNoToken
	}
	return am.ValidateJWT(token)
}

// ClaimsFromContext returns the claims stored by SessionMiddleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// SessionMiddleware requires a valid session token.
func (am *AuthManager) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := am.SessionFromRequest(r)
		if err != nil {
			http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Middleware for API key authentication
func (am *AuthManager) APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}
		if !am.ValidateAPIKey(apiKey) {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JudgeMiddleware guards simulation controls. A request passes with a valid
// X-Judge-Key header or a valid operator session.
func (am *AuthManager) JudgeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-Judge-Key"); key != "" {
			if !am.ValidateJudgeKey(key) {
				http.Error(w, "Invalid judge key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		claims, err := am.SessionFromRequest(r)
		if err != nil {
			http.Error(w, "Judge key or session required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}
