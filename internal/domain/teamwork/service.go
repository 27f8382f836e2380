package teamwork

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
)

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	MaxTries     uint
}

type TokenInfo struct {
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	store  TokenStore
	oauth  oauth2.Config
	client *http.Client
	tries  uint
}

func NewService(store TokenStore, cfg Config, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	return &Service{
		store: store,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		client: client,
		tries:  cfg.MaxTries,
	}
}

// Refresh exchanges the tenant's stored refresh token for a new access
// token and persists the result. 4xx answers from the provider are not
// retried.
func (s *Service) Refresh(ctx context.Context, tenantID string) (TokenInfo, error) {
	if s.oauth.ClientID == "" || s.oauth.Endpoint.TokenURL == "" {
		return TokenInfo{}, ErrNotConfigured
	}
	current, err := s.store.Load(ctx, tenantID)
	if err != nil {
		return TokenInfo{}, err
	}
	if current.RefreshToken == "" {
		return TokenInfo{}, ErrNotConnected
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	fresh, err := backoff.Retry(ctx, func() (*oauth2.Token, error) {
		tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
		if err == nil {
			return tok, nil
		}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		slog.Warn("teamwork token refresh attempt failed", "tenantId", tenantID, "err", err)
		return nil, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.tries))
	if err != nil {
		return TokenInfo{}, fmt.Errorf("refresh teamwork token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if err := s.store.Save(ctx, tenantID, fresh); err != nil {
		return TokenInfo{}, fmt.Errorf("store teamwork token: %w", err)
	}
	return TokenInfo{TokenType: fresh.Type(), ExpiresAt: fresh.Expiry}, nil
}
