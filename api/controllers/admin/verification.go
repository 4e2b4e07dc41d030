package admin

import (
	"net/http"
	"strings"

	"github.com/curiomarket/curio-backend/api/controllers/actor"
	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/api/validators"
	"github.com/curiomarket/curio-backend/internal/verification"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// VerificationQueue lists seller submissions, highest priority first.
func VerificationQueue(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		queue := verification.QueueParams{Limit: params.Limit, Cursor: params.Cursor}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseReviewQueueStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid queue status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			queue.Status = &status
		}

		page, err := svc.GetVerificationQueue(r.Context(), queue)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func VerificationApprove(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc, true, logg)
}

func VerificationReject(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc, false, logg)
}

func decisionHandler(svc verification.Service, approve bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		adminID, err := actor.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		queueID, err := validators.ParseUUIDParam(r, "queueId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input verification.DecisionInput
		if err := validators.DecodeOptionalJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var item *verification.QueueItemDTO
		if approve {
			item, err = svc.ApproveSeller(r.Context(), adminID, queueID, input.Notes)
		} else {
			item, err = svc.RejectSeller(r.Context(), adminID, queueID, input.Notes)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
