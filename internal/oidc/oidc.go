package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

var ErrNotConfigured = errors.New("keycloak is not configured")

// Verifier checks Keycloak-issued ID tokens against the realm's discovery document.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the realm issuer and builds a verifier bound to the client ID.
func NewVerifier(ctx context.Context, kc config.KeycloakConfig) (*Verifier, error) {
	issuer := kc.Issuer()
	if issuer == "" {
		return nil, ErrNotConfigured
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: kc.ClientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// Verify returns the ID token; *oidc.IDToken already satisfies middleware.Token.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
