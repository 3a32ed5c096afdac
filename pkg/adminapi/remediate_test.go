package adminapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/adminapi"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

func newRemediateRouter(rs store.RecordStore) http.Handler {
	h := adminapi.NewDepositHandler(rs)
	r := chi.NewRouter()
	r.Post("/api/v1/deposits/{id}/remediate", h.Remediate)
	return r
}

func TestRemediate_FailedDepositIsReset(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("repo", "repo-key-1")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	dep := store.NewDeposit(subID, repoID)
	dep.DepositStatus = store.DepositFailed
	dep.FailureMessage = "repository rejected the package"
	depID, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	router := newRemediateRouter(rs)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/"+depID+"/remediate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, depID)
	require.NoError(t, err)
	require.Equal(t, store.DepositNull, reread.DepositStatus)
	require.Empty(t, reread.FailureMessage)
}

func TestRemediate_NonFailedDepositReturnsConflict(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("repo", "repo-key-2")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	dep := store.NewDeposit(subID, repoID)
	dep.DepositStatus = store.DepositSubmitted
	depID, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	router := newRemediateRouter(rs)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/"+depID+"/remediate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, depID)
	require.NoError(t, err)
	require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
}

func TestRemediate_UnknownDepositReturnsNotFound(t *testing.T) {
	rs := memstore.New()
	router := newRemediateRouter(rs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits/does-not-exist/remediate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "error", body["status"])
}
