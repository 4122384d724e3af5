// Package auth verifies Privy bearer tokens and resolves the caller's
// wallet address for the HTTP layer.
package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID string
	Wallet string // lowercase hex address of the first linked wallet
}

// TokenVerifier turns a bearer token into an identity. PrivyVerifier is the
// production implementation; tests use fakes.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Verification failures, all mapped to 401 by the middleware.
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoWallet     = errors.New("no wallet account linked")
)

const (
	defaultAPIURL = "https://auth.privy.io"
	privyIssuer   = "privy.io"
)

// PrivyConfig holds the identity provider credentials.
type PrivyConfig struct {
	AppID     string
	AppSecret string
	APIURL    string // defaults to the hosted Privy API
}

// PrivyVerifier validates Privy access tokens (ES256 JWTs) against the
// app's verification key and resolves linked wallets through the Privy
// REST API.
type PrivyVerifier struct {
	cfg    PrivyConfig
	key    *ecdsa.PublicKey
	client *http.Client
	log    *zap.Logger
}

// NewPrivyVerifier fetches the app's verification key once and returns a
// ready verifier.
func NewPrivyVerifier(ctx context.Context, cfg PrivyConfig, log *zap.Logger) (*PrivyVerifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	v := &PrivyVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.Named("auth"),
	}
	key, err := v.fetchVerificationKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch privy verification key: %w", err)
	}
	v.key = key
	return v, nil
}

// Verify checks the token signature and claims, then resolves the user's
// first linked wallet.
func (v *PrivyVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return v.key, nil },
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithIssuer(privyIssuer),
		jwt.WithAudience(v.cfg.AppID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	wallet, err := v.firstLinkedWallet(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: claims.Subject, Wallet: wallet}, nil
}

// Privy API response shapes, trimmed to the fields used.
type privyApp struct {
	VerificationKey string `json:"verification_key"`
}

type privyUser struct {
	ID             string `json:"id"`
	LinkedAccounts []struct {
		Type      string `json:"type"`
		Address   string `json:"address"`
		ChainType string `json:"chain_type"`
	} `json:"linked_accounts"`
}

func (v *PrivyVerifier) fetchVerificationKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	var app privyApp
	if err := v.get(ctx, "/api/v1/apps/"+url.PathEscape(v.cfg.AppID), &app); err != nil {
		return nil, err
	}
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(app.VerificationKey))
	if err != nil {
		return nil, fmt.Errorf("parse verification key: %w", err)
	}
	return key, nil
}

// firstLinkedWallet returns the lowercase address of the user's first
// wallet-typed account.
func (v *PrivyVerifier) firstLinkedWallet(ctx context.Context, userID string) (string, error) {
	var user privyUser
	if err := v.get(ctx, "/api/v1/users/"+url.PathEscape(userID), &user); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	for _, acct := range user.LinkedAccounts {
		if acct.Type == "wallet" && acct.Address != "" {
			return strings.ToLower(acct.Address), nil
		}
	}
	return "", ErrNoWallet
}

func (v *PrivyVerifier) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.APIURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(v.cfg.AppID, v.cfg.AppSecret)
	req.Header.Set("privy-app-id", v.cfg.AppID)

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("privy api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
