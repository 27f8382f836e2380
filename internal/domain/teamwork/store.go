package teamwork

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	cryptoutil "payrolladmin/internal/platform/crypto"
	"payrolladmin/internal/platform/querier"
)

const Provider = "teamwork"

type TokenStore interface {
	Load(ctx context.Context, tenantID string) (*oauth2.Token, error)
	Save(ctx context.Context, tenantID string, token *oauth2.Token) error
}

// Store keeps integration tokens sealed per tenant.
type Store struct {
	DB     querier.Querier
	Sealer *cryptoutil.Sealer
}

func NewStore(db querier.Querier, sealer *cryptoutil.Sealer) *Store {
	return &Store{DB: db, Sealer: sealer}
}

func (s *Store) Load(ctx context.Context, tenantID string) (*oauth2.Token, error) {
	var (
		access, refresh, tokenType string
		expiresAt                  *time.Time
	)
	err := s.DB.QueryRow(ctx, `
    SELECT access_token, COALESCE(refresh_token, ''), COALESCE(token_type, ''), expires_at
    FROM integration_tokens
    WHERE tenant_id = $1 AND provider = $2
  `, tenantID, Provider).Scan(&access, &refresh, &tokenType, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{TokenType: tokenType}
	if tok.AccessToken, err = s.Sealer.OpenString(access, tenantID); err != nil {
		return nil, err
	}
	if tok.RefreshToken, err = s.Sealer.OpenString(refresh, tenantID); err != nil {
		return nil, err
	}
	if expiresAt != nil {
		tok.Expiry = *expiresAt
	}
	return tok, nil
}

func (s *Store) Save(ctx context.Context, tenantID string, token *oauth2.Token) error {
	access, err := s.Sealer.SealString(token.AccessToken, tenantID)
	if err != nil {
		return err
	}
	refresh, err := s.Sealer.SealString(token.RefreshToken, tenantID)
	if err != nil {
		return err
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO integration_tokens (tenant_id, provider, access_token, refresh_token, token_type, expires_at, updated_at)
    VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,now())
    ON CONFLICT (tenant_id, provider) DO UPDATE
    SET access_token = EXCLUDED.access_token,
        refresh_token = COALESCE(EXCLUDED.refresh_token, integration_tokens.refresh_token),
        token_type = EXCLUDED.token_type,
        expires_at = EXCLUDED.expires_at,
        updated_at = now()
  `, tenantID, Provider, access, refresh, token.TokenType, expiresAt)
	return err
}
