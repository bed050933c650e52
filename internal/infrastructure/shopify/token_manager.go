package shopify

import (
	"context"
	"fmt"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

// TokenManager seals access tokens before they reach a durable session store and
// opens them on the way out. It satisfies ports.SessionStore itself.
type TokenManager struct {
	store         ports.SessionStore
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
}

// NewTokenManager wraps store with token encryption
func NewTokenManager(store ports.SessionStore, encryptionSvc ports.EncryptionService, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		store:         store,
		encryptionSvc: encryptionSvc,
		logger:        logger,
	}
}

// EncryptToken encrypts an access token before storage
func (tm *TokenManager) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return tm.encryptionSvc.Encrypt(token)
}

// DecryptToken decrypts an access token after retrieval
func (tm *TokenManager) DecryptToken(encryptedToken string) (string, error) {
	if encryptedToken == "" {
		return "", fmt.Errorf("encrypted token cannot be empty")
	}
	return tm.encryptionSvc.Decrypt(encryptedToken)
}

// Get loads the shop's session and decrypts its access token
func (tm *TokenManager) Get(ctx context.Context, shop string) (*domain.Session, error) {
	session, err := tm.store.Get(ctx, shop)
	if err != nil || session == nil {
		return session, err
	}

	token, err := tm.DecryptToken(session.AccessToken)
	if err != nil {
		tm.logger.Error().Err(err).Str("shop", shop).Msg("Failed to decrypt stored access token")
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	out := *session
	out.AccessToken = token
	return &out, nil
}

// Set encrypts accessToken and stores the session
func (tm *TokenManager) Set(ctx context.Context, shop, accessToken, scope string) error {
	sealed, err := tm.EncryptToken(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	return tm.store.Set(ctx, shop, sealed, scope)
}

// Delete removes the shop's session
func (tm *TokenManager) Delete(ctx context.Context, shop string) error {
	return tm.store.Delete(ctx, shop)
}
