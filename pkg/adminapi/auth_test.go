package adminapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/adminapi"
)

func TestRequireOperator_MissingHeaderReturns401(t *testing.T) {
	v := adminapi.NewTokenValidator("a-sufficiently-long-test-secret", "")
	handler := adminapi.RequireOperator(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/d1/remediate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireOperator_InvalidTokenReturns401(t *testing.T) {
	v := adminapi.NewTokenValidator("a-sufficiently-long-test-secret", "")
	handler := adminapi.RequireOperator(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/d1/remediate", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireOperator_ValidTokenPassesThrough(t *testing.T) {
	v := adminapi.NewTokenValidator("a-sufficiently-long-test-secret", "depositsvc-test")
	token, err := v.Issue("ops-alice", time.Hour)
	require.NoError(t, err)

	var called bool
	handler := adminapi.RequireOperator(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/d1/remediate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireOperator_ExpiredTokenReturns401(t *testing.T) {
	v := adminapi.NewTokenValidator("a-sufficiently-long-test-secret", "")
	token, err := v.Issue("ops-alice", -time.Minute)
	require.NoError(t, err)

	handler := adminapi.RequireOperator(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/d1/remediate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireOperator_WrongSecretReturns401(t *testing.T) {
	issuer := adminapi.NewTokenValidator("a-sufficiently-long-test-secret", "")
	token, err := issuer.Issue("ops-alice", time.Hour)
	require.NoError(t, err)

	verifier := adminapi.NewTokenValidator("a-completely-different-secret!!", "")
	handler := adminapi.RequireOperator(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/d1/remediate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
