package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/internal/users"
	pkgauth "github.com/curiomarket/curio-backend/pkg/auth"
	"github.com/curiomarket/curio-backend/pkg/auth/oidc"
	"github.com/curiomarket/curio-backend/pkg/auth/session"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

const defaultReturnTo = "/"

// Service runs the OIDC login flow and manages the resulting sessions.
type Service interface {
	BeginLogin(ctx context.Context, host, returnTo string) (*LoginRedirect, error)
	CompleteLogin(ctx context.Context, host, code, state, flowCookie string) (*Session, error)
	ExchangeIDToken(ctx context.Context, rawIDToken string) (*Session, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	Logout(ctx context.Context, accessToken, postLogoutRedirect string) (string, error)
}

type userStore interface {
	UpsertFromOIDC(ctx context.Context, profile users.OIDCProfile) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, uuid.UUID, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Authenticator oidc.Authenticator
	Users         userStore
	Sessions      sessionManager
	Session       config.SessionConfig
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	provider oidc.Authenticator
	users    userStore
	sessions sessionManager
	cfg      config.SessionConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.Authenticator == nil {
		return nil, fmt.Errorf("oidc authenticator required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users service required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if params.Session.Secret == "" {
		return nil, fmt.Errorf("session secret required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		provider: params.Authenticator,
		users:    params.Users,
		sessions: params.Sessions,
		cfg:      params.Session,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) BeginLogin(ctx context.Context, host, returnTo string) (*LoginRedirect, error) {
	flow, err := oidc.NewFlowState(s.now(), safeReturnTo(returnTo))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate login state")
	}
	target, err := s.provider.AuthCodeURL(host, flow.State, flow.Nonce)
	if err != nil {
		if errors.Is(err, oidc.ErrUnknownDomain) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "login is not available on this host")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build login url")
	}
	cookie, err := oidc.EncodeFlow(s.cfg.Secret, flow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode login state")
	}
	return &LoginRedirect{URL: target, FlowCookie: cookie}, nil
}

func (s *service) CompleteLogin(ctx context.Context, host, code, state, flowCookie string) (*Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization code missing")
	}
	flow, err := oidc.DecodeFlow(s.cfg.Secret, flowCookie, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "login state invalid or expired")
	}
	if flow.State != state {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login state mismatch")
	}
	claims, err := s.provider.Exchange(ctx, host, code, flow.Nonce)
	if err != nil {
		if errors.Is(err, oidc.ErrUnknownDomain) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "login is not available on this host")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "identity provider rejected the login")
	}
	out, err := s.signIn(ctx, claims)
	if err != nil {
		return nil, err
	}
	out.ReturnTo = safeReturnTo(flow.ReturnTo)
	return out, nil
}

func (s *service) ExchangeIDToken(ctx context.Context, rawIDToken string) (*Session, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id_token is required")
	}
	claims, err := s.provider.VerifyIDToken(ctx, rawIDToken, "")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid id token")
	}
	return s.signIn(ctx, claims)
}

func (s *service) signIn(ctx context.Context, claims *oidc.Claims) (*Session, error) {
	user, err := s.users.UpsertFromOIDC(ctx, users.OIDCProfile{
		Subject:         claims.Subject,
		Email:           claims.Email,
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		ProfileImageURL: claims.ProfileImageURL,
	})
	if err != nil {
		return nil, err
	}
	if !user.CanSignIn() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not active").
			WithDetails(map[string]any{"status": user.AccountStatus})
	}

	accessID := session.NewAccessID()
	refresh, err := s.sessions.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	out, err := s.issue(user, accessID, refresh)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "user_id", user.ID.String())
	s.logg.Info(ctx, "session issued")
	return out, nil
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.cfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	accessID, refresh, userID, err := s.sessions.Rotate(ctx, claims.ID, strings.TrimSpace(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}
	if userID != claims.UserID {
		_ = s.sessions.Revoke(ctx, accessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token does not match access token")
	}

	// The role is re-read so promotions and demotions reach the next token.
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, accessID)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
		}
		return nil, err
	}
	if !user.CanSignIn() {
		_ = s.sessions.Revoke(ctx, accessID)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not active").
			WithDetails(map[string]any{"status": user.AccountStatus})
	}
	return s.issue(user, accessID, refresh)
}

func (s *service) Logout(ctx context.Context, accessToken, postLogoutRedirect string) (string, error) {
	if token := strings.TrimSpace(accessToken); token != "" {
		claims, err := pkgauth.ParseAccessTokenAllowExpired(s.cfg, token)
		if err != nil {
			s.logg.Warn(ctx, "logout with unparseable access token")
		} else if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
		}
	}
	return s.provider.EndSessionURL(postLogoutRedirect), nil
}

func (s *service) issue(user *models.User, accessID, refresh string) (*Session, error) {
	token, err := pkgauth.MintAccessToken(s.cfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &Session{
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		User:         users.FromModel(user),
	}, nil
}

// safeReturnTo keeps post-login redirects on this site.
func safeReturnTo(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return defaultReturnTo
	}
	return raw
}
