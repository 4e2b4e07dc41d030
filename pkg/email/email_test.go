package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type stubAPI struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (s *stubAPI) SendWithContext(_ context.Context, m *mail.SGMailV3) (*sendgridResponse, error) {
	s.sent = append(s.sent, m)
	if s.err != nil {
		return nil, s.err
	}
	return &sendgridResponse{StatusCode: s.status}, nil
}

func TestNewClientWithoutKeyLogs(t *testing.T) {
	sender, err := NewClient(config.SendgridConfig{FromEmail: "no-reply@curio.market"}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	_, ok := sender.(*LogSender)
	assert.True(t, ok)
	require.NoError(t, sender.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"}))
	assert.ErrorIs(t, sender.Send(context.Background(), Message{}), ErrRecipientRequired)
}

func TestNewClientRequiresFrom(t *testing.T) {
	_, err := NewClient(config.SendgridConfig{APIKey: "SG.x"}, nil)
	require.Error(t, err)
}

func TestClientSend(t *testing.T) {
	api := &stubAPI{status: 202}
	client := &Client{api: api, from: mail.NewEmail("Curio", "no-reply@curio.market")}

	err := client.Send(context.Background(), Message{To: "buyer@example.com", ToName: "Ada", Subject: "Hello", HTML: "<p>x</p>", Text: "x"})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "Hello", api.sent[0].Subject)
	require.Len(t, api.sent[0].Content, 2)
	assert.Equal(t, "text/plain", api.sent[0].Content[0].Type)
	assert.Equal(t, "buyer@example.com", api.sent[0].Personalizations[0].To[0].Address)
}

func TestClientSendFailures(t *testing.T) {
	client := &Client{api: &stubAPI{status: 400}, from: mail.NewEmail("Curio", "no-reply@curio.market")}
	err := client.Send(context.Background(), Message{To: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	client.api = &stubAPI{err: errors.New("dial tcp")}
	require.Error(t, client.Send(context.Background(), Message{To: "x@example.com"}))

	assert.ErrorIs(t, client.Send(context.Background(), Message{}), ErrRecipientRequired)
}

func TestRendererRendersEveryTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	msg, err := r.Render(TemplateVerificationCode, "a@example.com", "Ada", map[string]any{
		"Name": "Ada", "Type": "email", "Code": "123456", "ExpiresInMinutes": 15,
	})
	require.NoError(t, err)
	assert.Equal(t, "Your Curio verification code: 123456", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>123456</strong>")
	assert.Contains(t, msg.Text, "123456")
	assert.False(t, strings.Contains(msg.Text, "<"))

	items := []map[string]any{{"Title": "Brass compass", "Quantity": 1, "LineTotal": "40.00"}}
	for name, data := range map[string]any{
		TemplateOrderConfirmation:     map[string]any{"OrderID": "o1", "ShopName": "Attic", "Items": items, "Total": "40.00", "Currency": "usd"},
		TemplateSellerNewOrder:        map[string]any{"OrderID": "o1", "ShopName": "Attic", "Items": items, "Total": "40.00", "Payout": "36.00", "Currency": "usd"},
		TemplateSellerVerification:    map[string]any{"ShopName": "Attic", "Decision": "approved", "Notes": "ok"},
		TemplateSubscriptionActivated: map[string]any{"Name": "Ada"},
	} {
		msg, err := r.Render(name, "a@example.com", "", data)
		require.NoError(t, err, name)
		assert.NotEmpty(t, msg.Subject, name)
		assert.NotEmpty(t, msg.HTML, name)
	}

	_, err = r.Render("nope", "a@example.com", "", nil)
	require.Error(t, err)
}

func TestRendererEscapesHTML(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	msg, err := r.Render(TemplateSubscriptionActivated, "a@example.com", "", map[string]any{"Name": "<script>"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}
