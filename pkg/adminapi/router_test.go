package adminapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/adminapi"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

func TestRouter_HealthRoutesAreUnauthenticated(t *testing.T) {
	rs := memstore.New()
	router := adminapi.NewRouter(rs, adminapi.Config{OperatorSecret: "a-sufficiently-long-test-secret"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RemediateRequiresAuth(t *testing.T) {
	rs := memstore.New()
	router := adminapi.NewRouter(rs, adminapi.Config{OperatorSecret: "a-sufficiently-long-test-secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/whatever/remediate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RemediateSucceedsWithValidToken(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("repo", "repo-key-router")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)
	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)
	dep := store.NewDeposit(subID, repoID)
	dep.DepositStatus = store.DepositFailed
	depID, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	secret := "a-sufficiently-long-test-secret"
	router := adminapi.NewRouter(rs, adminapi.Config{OperatorSecret: secret, Issuer: "depositsvc-test"})

	validator := adminapi.NewTokenValidator(secret, "depositsvc-test")
	token, err := validator.Issue("ops-bob", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/"+depID+"/remediate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
