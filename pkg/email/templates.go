package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	ttemplate "text/template"
)

// Template names.
const (
	TemplateVerificationCode      = "verification_code"
	TemplateOrderConfirmation     = "order_confirmation"
	TemplateSellerNewOrder        = "seller_new_order"
	TemplateSellerVerification    = "seller_verification_decision"
	TemplateSubscriptionActivated = "subscription_activated"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[string]string{
	TemplateVerificationCode:      "Your Curio verification code: {{.Code}}",
	TemplateOrderConfirmation:     "Order confirmed: {{.OrderID}}",
	TemplateSellerNewOrder:        "New order for {{.ShopName}}",
	TemplateSellerVerification:    "Your shop verification was {{.Decision}}",
	TemplateSubscriptionActivated: "Your Curio seller subscription is active",
}

// Renderer renders the embedded templates.
type Renderer struct {
	html     *template.Template
	subjects map[string]*ttemplate.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	html, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	r := &Renderer{html: html, subjects: make(map[string]*ttemplate.Template, len(subjects))}
	for name, raw := range subjects {
		if html.Lookup(name+".html") == nil {
			return nil, fmt.Errorf("email template %q missing", name)
		}
		tpl, err := ttemplate.New(name).Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse subject %q: %w", name, err)
		}
		r.subjects[name] = tpl
	}
	return r, nil
}

// Render builds a message for to from the named template.
func (r *Renderer) Render(name, to, toName string, data any) (Message, error) {
	subjectTpl, ok := r.subjects[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	var subject bytes.Buffer
	if err := subjectTpl.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject %q: %w", name, err)
	}
	var body bytes.Buffer
	if err := r.html.ExecuteTemplate(&body, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("render body %q: %w", name, err)
	}
	return Message{
		To:      to,
		ToName:  toName,
		Subject: subject.String(),
		HTML:    body.String(),
		Text:    plainText(body.String()),
	}, nil
}

// plainText strips tags for the text/plain part.
func plainText(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
