package oidc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/curiomarket/curio-backend/pkg/security"
)

// FlowCookieName holds the signed state and nonce between login and callback.
const FlowCookieName = "curio.oidc"

// FlowTTL bounds how long a login may take.
const FlowTTL = 10 * time.Minute

// ErrFlowExpired is returned for a flow cookie older than FlowTTL.
var ErrFlowExpired = errors.New("oidc: login flow expired")

// FlowState is persisted in the flow cookie.
type FlowState struct {
	State    string    `json:"s"`
	Nonce    string    `json:"n"`
	ReturnTo string    `json:"r,omitempty"`
	IssuedAt time.Time `json:"t"`
}

// NewFlowState generates a fresh random state and nonce.
func NewFlowState(now time.Time, returnTo string) (FlowState, error) {
	state, err := security.NewNonce(24)
	if err != nil {
		return FlowState{}, err
	}
	nonce, err := security.NewNonce(24)
	if err != nil {
		return FlowState{}, err
	}
	return FlowState{State: state, Nonce: nonce, ReturnTo: returnTo, IssuedAt: now.UTC()}, nil
}

// EncodeFlow serializes and signs the flow state with secret.
func EncodeFlow(secret string, flow FlowState) (string, error) {
	raw, err := json.Marshal(flow)
	if err != nil {
		return "", err
	}
	return security.Sign(secret, base64.RawURLEncoding.EncodeToString(raw)), nil
}

// DecodeFlow verifies the signature and age of a flow cookie.
func DecodeFlow(secret, value string, now time.Time) (FlowState, error) {
	payload, err := security.Verify(secret, value)
	if err != nil {
		return FlowState{}, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return FlowState{}, security.ErrInvalidState
	}
	var flow FlowState
	if err := json.Unmarshal(raw, &flow); err != nil {
		return FlowState{}, security.ErrInvalidState
	}
	if now.Sub(flow.IssuedAt) > FlowTTL {
		return FlowState{}, ErrFlowExpired
	}
	return flow, nil
}
