package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims is the HMAC-signed token an operator presents to call
// the remediation endpoint. Unlike the teacher's Claims (which carries
// a user/role/group model for its own multi-tenant auth), this service
// has no user accounts of its own — the admin API authenticates a
// single operator role, pre-issued out of band, matching spec.md §9's
// "operator-driven retry is assumed external" resolution.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

var (
	ErrInvalidToken = errors.New("adminapi: invalid token")
	ErrExpiredToken = errors.New("adminapi: token has expired")
)

// TokenValidator validates operator bearer tokens.
type TokenValidator struct {
	secret []byte
	issuer string
}

func NewTokenValidator(secret, issuer string) *TokenValidator {
	if issuer == "" {
		issuer = "depositsvc"
	}
	return &TokenValidator{secret: []byte(secret), issuer: issuer}
}

func (v *TokenValidator) Validate(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue mints a short-lived operator token, used by cmd/depositsvc's
// token subcommand to hand an operator something to paste into
// the Authorization header.
func (v *TokenValidator) Issue(operator string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Operator: operator,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

type contextKey string

const claimsContextKey contextKey = "adminapi.claims"

func claimsFromContext(ctx context.Context) *OperatorClaims {
	claims, _ := ctx.Value(claimsContextKey).(*OperatorClaims)
	return claims
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// RequireOperator is middleware that validates the bearer token and
// rejects the request with 401 if it's missing or invalid.
func RequireOperator(v *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse("authorization header required"))
				return
			}
			claims, err := v.Validate(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
