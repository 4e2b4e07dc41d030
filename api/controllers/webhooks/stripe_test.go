package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/metrics"
)

const testSecret = "whsec_test"

type stubProcessor struct {
	events []string
	err    error
}

func (s *stubProcessor) Process(ctx context.Context, event *stripe.Event) (string, error) {
	s.events = append(s.events, event.ID)
	if s.err != nil {
		return metrics.OutcomeFailed, s.err
	}
	return metrics.OutcomeProcessed, nil
}

const eventPayload = `{"id":"evt_123","object":"event","type":"customer.subscription.updated","api_version":"2020-08-27","data":{"object":{"id":"sub_123","object":"subscription","status":"active","customer":"cus_123"}}}`

func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestStripeWebhookAcceptsSignedEvent(t *testing.T) {
	svc := &stubProcessor{}
	resp := httptest.NewRecorder()
	StripeWebhook(svc, testSecret, nil).ServeHTTP(resp, signedRequest(t, eventPayload))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"received":true}`, resp.Body.String())
	assert.Equal(t, []string{"evt_123"}, svc.events)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubProcessor{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(eventPayload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp := httptest.NewRecorder()
	StripeWebhook(svc, testSecret, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.events)
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(eventPayload))
	resp := httptest.NewRecorder()
	StripeWebhook(&stubProcessor{}, testSecret, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "stripe signature missing")
}

func TestStripeWebhookRejectsOversizedBody(t *testing.T) {
	big := `{"id":"evt_big","padding":"` + strings.Repeat("x", maxStripeWebhookBytes) + `"}`
	resp := httptest.NewRecorder()
	StripeWebhook(&stubProcessor{}, testSecret, nil).ServeHTTP(resp, signedRequest(t, big))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStripeWebhookProcessingFailureIsRetryable(t *testing.T) {
	svc := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	resp := httptest.NewRecorder()
	StripeWebhook(svc, testSecret, nil).ServeHTTP(resp, signedRequest(t, eventPayload))
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}
