package oidc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/curiomarket/curio-backend/pkg/config"
)

var (
	// ErrUnknownDomain is returned when the request host is not a configured callback domain.
	ErrUnknownDomain = errors.New("oidc: host is not an allowed domain")
	// ErrNonceMismatch is returned when the ID token nonce differs from the flow cookie.
	ErrNonceMismatch = errors.New("oidc: nonce mismatch")
	// ErrMissingIDToken is returned when the token response carries no id_token.
	ErrMissingIDToken = errors.New("oidc: id_token missing from token response")
)

// Claims are the identity fields read from the ID token.
type Claims struct {
	Subject         string `json:"sub"`
	Email           string `json:"email"`
	EmailVerified   bool   `json:"email_verified"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Authenticator is the surface the auth service depends on.
type Authenticator interface {
	AuthCodeURL(host, state, nonce string) (string, error)
	Exchange(ctx context.Context, host, code, nonce string) (*Claims, error)
	VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*Claims, error)
	EndSessionURL(postLogoutRedirect string) string
}

type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*gooidc.IDToken, error)
}

// Provider runs the authorization code flow against the configured issuer.
type Provider struct {
	cfg        config.OIDCConfig
	endpoint   oauth2.Endpoint
	verifier   idTokenVerifier
	endSession string
}

// NewProvider performs discovery against cfg.IssuerURL.
func NewProvider(ctx context.Context, cfg config.OIDCConfig) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oidc client id (REPL_ID) is required")
	}
	if len(cfg.AllowedDomains()) == 0 {
		return nil, errors.New("oidc callback domains (REPLIT_DOMAINS) are required")
	}
	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	var meta struct {
		EndSession string `json:"end_session_endpoint"`
	}
	_ = provider.Claims(&meta)

	return &Provider{
		cfg:        cfg,
		endpoint:   provider.Endpoint(),
		verifier:   provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		endSession: meta.EndSession,
	}, nil
}

// RedirectURL returns the callback URL for host, which must be one of the
// configured domains.
func (p *Provider) RedirectURL(host string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(domain); err == nil {
		domain = h
	}
	if !slices.Contains(p.cfg.AllowedDomains(), domain) {
		return "", ErrUnknownDomain
	}
	return "https://" + domain + p.cfg.CallbackPath, nil
}

func (p *Provider) oauthConfig(host string) (*oauth2.Config, error) {
	redirect, err := p.RedirectURL(host)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     p.endpoint,
		RedirectURL:  redirect,
		Scopes:       []string{gooidc.ScopeOpenID, "email", "profile", gooidc.ScopeOfflineAccess},
	}, nil
}

// AuthCodeURL builds the provider login URL for host.
func (p *Provider) AuthCodeURL(host, state, nonce string) (string, error) {
	oc, err := p.oauthConfig(host)
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL(state, gooidc.Nonce(nonce), oauth2.SetAuthURLParam("prompt", "login consent")), nil
}

// Exchange trades the authorization code for tokens and verifies the ID token.
func (p *Provider) Exchange(ctx context.Context, host, code, nonce string) (*Claims, error) {
	oc, err := p.oauthConfig(host)
	if err != nil {
		return nil, err
	}
	token, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oidc code exchange: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, ErrMissingIDToken
	}
	return p.VerifyIDToken(ctx, raw, nonce)
}

// VerifyIDToken validates signature, audience and expiry. A non-empty nonce
// must match the token's nonce.
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*Claims, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = idToken.Subject
	}
	return &claims, nil
}

// EndSessionURL returns the provider logout URL, or "" when discovery did not
// advertise one.
func (p *Provider) EndSessionURL(postLogoutRedirect string) string {
	if p.endSession == "" {
		return ""
	}
	u, err := url.Parse(p.endSession)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("client_id", p.cfg.ClientID)
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
