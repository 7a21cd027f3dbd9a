// -------------------------------------------------------------------------------
// Authentication - Credentials and Bearer Tokens
//
// Project: Streamlo
//
// Password hashing with bcrypt and stateless session tokens with JWT. Tokens
// carry the account id as the subject claim; middleware extracts it and makes
// it available to handlers through the request context so ownership checks
// never trust client-supplied ids.
// -------------------------------------------------------------------------------

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/dunguyenn/StreamloWebservice/internal/config"
)

// -------------------------------------------------------------------------
// ERRORS
// -------------------------------------------------------------------------

var (
	// ErrInvalidCredentials is returned when a password check fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for missing, malformed, expired or
	// mis-signed bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// -------------------------------------------------------------------------
// PASSWORDS
// -------------------------------------------------------------------------

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// -------------------------------------------------------------------------
// TOKENS
// -------------------------------------------------------------------------

// Tokens issues and verifies signed bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer from the auth configuration.
func NewTokens(cfg config.AuthConfig) *Tokens {
	return &Tokens{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// Issue creates a signed token for the given account id.
func (t *Tokens) Issue(userID primitive.ObjectID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token string and returns the account id it was issued for.
func (t *Tokens) Verify(tokenString string) (primitive.ObjectID, error) {
	var claims jwt.RegisteredClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))

	if err != nil || !token.Valid {
		return primitive.NilObjectID, ErrInvalidToken
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return userID, nil
}

// -------------------------------------------------------------------------
// REQUEST CONTEXT
// -------------------------------------------------------------------------

type contextKey struct{}

// UserID returns the authenticated account id stored in the request context
// by Middleware. The second return is false on unauthenticated requests.
func UserID(ctx context.Context) (primitive.ObjectID, bool) {
	id, ok := ctx.Value(contextKey{}).(primitive.ObjectID)
	return id, ok
}

// WithUserID returns a context carrying the authenticated account id. Exposed
// for handler tests.
func WithUserID(ctx context.Context, id primitive.ObjectID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware verifies the Bearer token on every request and rejects the
// request with 401 when verification fails.
func (t *Tokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := t.fromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid or missing bearer token"}`))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// fromRequest extracts and verifies the Bearer token from the Authorization
// header.
func (t *Tokens) fromRequest(r *http.Request) (primitive.ObjectID, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return t.Verify(token)
}
