package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/splatsvc/coralgate/core"
	"github.com/splatsvc/coralgate/ports"
)

// AuthService handles the interactive login flow: PKCE challenge generation,
// the full exchange chain on callback, and account removal.
type AuthService struct {
	exchanger ports.Exchanger
	store     ports.TokenStore
	events    ports.EventPublisher
	log       *logrus.Logger

	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	exchanger ports.Exchanger,
	store ports.TokenStore,
	events ports.EventPublisher,
	sessionTTL time.Duration,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		exchanger:  exchanger,
		store:      store,
		events:     events,
		log:        logger,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// BeginLogin produces the PKCE material and login URL for a new login
// attempt. The challenge is held by the caller for the complete step and is
// never persisted. Returns core.ErrUserExists when the external identity is
// already bound to an account.
func (s *AuthService) BeginLogin(ctx context.Context, externalID string) (*core.LoginChallenge, error) {
	if _, err := s.store.GetUser(ctx, externalID); err == nil {
		return nil, core.ErrUserExists
	} else if err != core.ErrUserNotFound {
		return nil, err
	}

	return s.exchanger.GenerateLoginChallenge()
}

// CompleteLogin consumes the pasted-back callback URL, runs the full exchange
// chain, and commits the new account with all three token records in one
// transaction. The account is never partially created.
func (s *AuthService) CompleteLogin(ctx context.Context, externalID, redirectedURL string, challenge *core.LoginChallenge) (*core.UserAccount, error) {
	if _, err := s.store.GetUser(ctx, externalID); err == nil {
		return nil, core.ErrUserExists
	} else if err != core.ErrUserNotFound {
		return nil, err
	}

	sessionToken, err := s.exchanger.ExchangeSessionCode(ctx, redirectedURL, challenge)
	if err != nil {
		return nil, err
	}

	identity, err := s.exchanger.FetchIdentity(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	gameToken, err := s.exchanger.GenerateGameToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	bulletToken, err := s.exchanger.GenerateBulletToken(ctx, sessionToken, gameToken.Value)
	if err != nil {
		return nil, err
	}

	user := &core.UserAccount{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Language:   identity.Language,
		Country:    identity.Country,
	}

	records := []core.TokenRecord{
		{Kind: core.TokenSession, Value: sessionToken, ExpiresAt: s.now().Add(s.sessionTTL).Unix()},
		gameToken,
		bulletToken,
	}

	if err := s.store.CreateUser(ctx, user, records); err != nil {
		return nil, err
	}

	s.log.WithField("user", externalID).Info("Completed login")

	if err := s.events.PublishLogin(ctx, externalID); err != nil {
		s.log.WithError(err).Warn("Failed to publish login event")
	}

	return user, nil
}

// Logout removes the account and all its tokens.
func (s *AuthService) Logout(ctx context.Context, externalID string) error {
	if err := s.store.DeleteUser(ctx, externalID); err != nil {
		return err
	}

	if err := s.events.PublishLogout(ctx, externalID); err != nil {
		s.log.WithError(err).Warn("Failed to publish logout event")
	}

	return nil
}
