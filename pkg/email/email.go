package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// Message is a rendered e-mail ready to send.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const sendTimeout = 20 * time.Second

// ErrRecipientRequired is returned for a message without a To address.
var ErrRecipientRequired = errors.New("email: recipient required")

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*sendgridResponse, error)
}

type sendgridResponse struct {
	StatusCode int
	Body       string
}

type sendgridClient struct {
	client *sendgrid.Client
}

func (s sendgridClient) SendWithContext(ctx context.Context, m *mail.SGMailV3) (*sendgridResponse, error) {
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return nil, err
	}
	return &sendgridResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// Client sends through SendGrid.
type Client struct {
	api  sendgridAPI
	from *mail.Email
	logg *logger.Logger
}

// NewClient builds a SendGrid sender. Without an API key it returns a
// LogSender so local environments work without credentials.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("sendgrid from email is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogSender{logg: logg}, nil
	}
	return &Client{
		api:  sendgridClient{client: sendgrid.NewSendClient(cfg.APIKey)},
		from: mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logg: logg,
	}, nil
}

// Send delivers msg; any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrRecipientRequired
	}
	to := mail.NewEmail(msg.ToName, msg.To)
	payload := mail.NewV3MailInit(c.from, msg.Subject, to,
		mail.NewContent("text/plain", msg.Text),
		mail.NewContent("text/html", msg.HTML),
	)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	resp, err := c.api.SendWithContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"status": resp.StatusCode,
				"body":   resp.Body,
				"to":     msg.To,
			})
			c.logg.Warn(logCtx, "sendgrid rejected message")
		}
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender returns a sender that only logs.
func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrRecipientRequired
	}
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{"to": msg.To, "subject": msg.Subject})
		l.logg.Info(logCtx, "email delivery skipped (no sendgrid key)")
	}
	return nil
}
