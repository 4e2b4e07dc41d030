package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/curiomarket/curio-backend/pkg/config"
	redisclient "github.com/curiomarket/curio-backend/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// Manager handles refresh token creation, storage, and rotation. Each access
// token jti maps to "<userID>:<refreshToken>" in Redis.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", cfg.RefreshTTL, cfg.AccessTTL)
	}
	return &Manager{store: client, keyer: client, ttl: cfg.RefreshTTL}, nil
}

// Generate creates a refresh token bound to accessID and userID.
func (m *Manager) Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("access id is required")
	}
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(accessID), encode(userID, token), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate validates the refresh token, drops the old session, and returns a new
// access id and refresh token along with the session's user.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, uuid.UUID, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", uuid.Nil, ErrInvalidRefreshToken
	}

	key := m.keyer.AccessSessionKey(oldAccessID)
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return "", "", uuid.Nil, wrapNotFound(err)
	}
	userID, stored, ok := decode(raw)
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) != 1 {
		return "", "", uuid.Nil, ErrInvalidRefreshToken
	}

	newAccessID := NewAccessID()
	newToken, err := m.Generate(ctx, newAccessID, userID)
	if err != nil {
		return "", "", uuid.Nil, err
	}
	if err := m.store.Del(ctx, key); err != nil {
		return "", "", uuid.Nil, err
	}
	return newAccessID, newToken, userID, nil
}

// Revoke deletes the refresh mapping tied to the access identifier.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.keyer.AccessSessionKey(accessID))
}

// HasSession reports whether the access ID still has an active refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewAccessID produces the identifier used as the JWT jti and Redis key.
func NewAccessID() string {
	return uuid.NewString()
}

func encode(userID uuid.UUID, token string) string {
	return userID.String() + ":" + token
}

func decode(raw string) (uuid.UUID, string, bool) {
	idPart, token, found := strings.Cut(raw, ":")
	if !found || token == "" {
		return uuid.Nil, "", false
	}
	userID, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", false
	}
	return userID, token, true
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}
