package adminapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// DepositHandler exposes the operator-driven recovery path spec.md §9
// leaves unspecified beyond "assumed external": an operator who has
// investigated a FAILED deposit's FailureMessage calls this endpoint
// to re-arm it, which hands it back to the dispatcher/deposit pipeline
// exactly as if it had just been created.
type DepositHandler struct {
	store      store.RecordStore
	criOptions cri.Options
}

func NewDepositHandler(rs store.RecordStore) *DepositHandler {
	return &DepositHandler{store: rs}
}

// Remediate handles POST /api/v1/deposits/{id}/remediate. It flips a
// failed deposit back to the null status, re-arming it for the next
// dispatch cycle's deposit task. A deposit that isn't currently failed
// is left untouched and reported as a conflict.
func (h *DepositHandler) Remediate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	depositID := chi.URLParam(r, "id")

	operator := "unknown"
	if claims := claimsFromContext(ctx); claims != nil {
		operator = claims.Operator
	}

	result := cri.PerformCritical(ctx, h.store, store.KindDeposit, depositID,
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositFailed },
		func(d *store.Deposit) *store.Deposit {
			d.DepositStatus = store.DepositNull
			d.FailureMessage = ""
			d.PollAttempts = 0
			d.FirstPolledAt = nil
			d.NextPollAt = nil
			return d
		},
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositNull },
		h.criOptions,
	)
	if result.Err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse("deposit not found"))
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusConflict, errorResponse("deposit is not in a failed state"))
		return
	}

	logger.InfoCtx(ctx, "adminapi: deposit remediated", logger.DepositID(depositID), "operator", operator)
	writeJSON(w, http.StatusOK, okResponse(map[string]string{
		"deposit_id": depositID,
		"status":     string(store.DepositNull),
	}))
}
