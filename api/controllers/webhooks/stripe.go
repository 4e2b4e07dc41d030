package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/curiomarket/curio-backend/api/responses"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	stripeclient "github.com/curiomarket/curio-backend/pkg/stripe"
)

const maxStripeWebhookBytes = 1 << 20

type stripeEventProcessor interface {
	Process(ctx context.Context, event *stripe.Event) (string, error)
}

// StripeWebhook verifies the Stripe-Signature header over the raw body and
// hands the event to the billing processor. Signature and payload failures
// answer 400 so Stripe does not retry them; processing failures answer with
// the error's status so Stripe retries.
func StripeWebhook(svc stripeEventProcessor, signingSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || signingSecret == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxStripeWebhookBytes+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		if len(payload) > maxStripeWebhookBytes {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large"))
			return
		}

		event, err := stripeclient.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), signingSecret)
		if err != nil {
			if logg != nil {
				logg.Warn(r.Context(), "stripe webhook rejected: "+err.Error())
			}
			msg := "invalid stripe signature"
			if errors.Is(err, stripeclient.ErrSignatureMissing) {
				msg = "stripe signature missing"
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeValidation, msg))
			return
		}

		if _, err := svc.Process(r.Context(), &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
