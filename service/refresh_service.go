package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/splatsvc/coralgate/core"
	"github.com/splatsvc/coralgate/ports"
)

// RefreshOutcome reports what a refresh pass did.
type RefreshOutcome int

const (
	// RefreshFailed means a required exchange step failed and nothing was written.
	RefreshFailed RefreshOutcome = iota

	// RefreshAlreadyValid means no token was expired.
	RefreshAlreadyValid

	// RefreshedBullet means only the bullet token was regenerated.
	RefreshedBullet

	// RefreshedAll means both the game-web and bullet tokens were regenerated.
	RefreshedAll
)

// String returns the event-stable name of the outcome.
func (o RefreshOutcome) String() string {
	switch o {
	case RefreshAlreadyValid:
		return "already_valid"
	case RefreshedBullet:
		return "refreshed_bullet"
	case RefreshedAll:
		return "refreshed_all"
	default:
		return "failed"
	}
}

// RefreshService keeps the volatile tokens of a user valid by re-running the
// minimal suffix of the exchange chain. Session tokens are never refreshed
// here; their expiry requires a new interactive login.
type RefreshService struct {
	exchanger ports.Exchanger
	store     ports.TokenStore
	events    ports.EventPublisher
	log       *logrus.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewRefreshService creates a new refresh orchestrator.
func NewRefreshService(
	exchanger ports.Exchanger,
	store ports.TokenStore,
	events ports.EventPublisher,
	logger *logrus.Logger,
) *RefreshService {
	return &RefreshService{
		exchanger: exchanger,
		store:     store,
		events:    events,
		log:       logger,
		now:       time.Now,
	}
}

// EnsureFresh inspects the stored expiry timestamps and regenerates whatever
// suffix of the chain is stale. Concurrent calls for the same user coalesce
// into a single refresh.
func (s *RefreshService) EnsureFresh(ctx context.Context, user *core.UserAccount) (RefreshOutcome, error) {
	result, err, _ := s.group.Do(user.ID, func() (interface{}, error) {
		return s.ensureFresh(ctx, user)
	})

	outcome, ok := result.(RefreshOutcome)
	if !ok {
		outcome = RefreshFailed
	}
	return outcome, err
}

func (s *RefreshService) ensureFresh(ctx context.Context, user *core.UserAccount) (RefreshOutcome, error) {
	now := s.now()

	gameToken, err := s.store.GetToken(ctx, user.ID, core.TokenGameWeb)
	if err != nil {
		return RefreshFailed, err
	}
	bulletToken, err := s.store.GetToken(ctx, user.ID, core.TokenBullet)
	if err != nil {
		return RefreshFailed, err
	}

	var outcome RefreshOutcome
	switch {
	case gameToken.Expired(now):
		// Covers the both-expired case: the bullet token depends on the
		// game-web token, so the full suffix must run.
		if err := s.refreshAll(ctx, user); err != nil {
			s.publish(ctx, user, RefreshFailed)
			return RefreshFailed, err
		}
		outcome = RefreshedAll

	case bulletToken.Expired(now):
		if err := s.refreshBullet(ctx, user); err != nil {
			// One escalation to the full suffix, never a loop.
			s.log.WithError(err).WithField("user", user.ExternalID).
				Warn("Bullet refresh failed, escalating to full refresh")
			if err := s.refreshAll(ctx, user); err != nil {
				s.publish(ctx, user, RefreshFailed)
				return RefreshFailed, err
			}
			outcome = RefreshedAll
			break
		}
		outcome = RefreshedBullet

	default:
		return RefreshAlreadyValid, nil
	}

	s.publish(ctx, user, outcome)
	return outcome, nil
}

// RefreshAll regenerates both volatile tokens from the stored session token
// and commits them atomically. On any step failure nothing is written.
// Concurrent refreshes for the same user coalesce into one chain run,
// whichever entry point they arrive through.
func (s *RefreshService) RefreshAll(ctx context.Context, user *core.UserAccount) error {
	_, err, _ := s.group.Do(user.ID, func() (interface{}, error) {
		return RefreshedAll, s.refreshAll(ctx, user)
	})
	return err
}

func (s *RefreshService) refreshAll(ctx context.Context, user *core.UserAccount) error {
	sessionToken, err := s.store.GetToken(ctx, user.ID, core.TokenSession)
	if err != nil {
		return err
	}

	gameToken, err := s.exchanger.GenerateGameToken(ctx, sessionToken.Value)
	if err != nil {
		return err
	}

	bulletToken, err := s.exchanger.GenerateBulletToken(ctx, sessionToken.Value, gameToken.Value)
	if err != nil {
		return err
	}

	return s.store.PutTokens(ctx, user.ID, []core.TokenRecord{gameToken, bulletToken})
}

// refreshBullet regenerates only the bullet token from the stored game-web
// token.
func (s *RefreshService) refreshBullet(ctx context.Context, user *core.UserAccount) error {
	sessionToken, err := s.store.GetToken(ctx, user.ID, core.TokenSession)
	if err != nil {
		return err
	}
	gameToken, err := s.store.GetToken(ctx, user.ID, core.TokenGameWeb)
	if err != nil {
		return err
	}

	bulletToken, err := s.exchanger.GenerateBulletToken(ctx, sessionToken.Value, gameToken.Value)
	if err != nil {
		return err
	}

	return s.store.UpdateToken(ctx, user.ID, core.TokenBullet, bulletToken.Value, bulletToken.ExpiresAt)
}

func (s *RefreshService) publish(ctx context.Context, user *core.UserAccount, outcome RefreshOutcome) {
	if err := s.events.PublishRefresh(ctx, user.ExternalID, outcome.String()); err != nil {
		s.log.WithError(err).Warn("Failed to publish refresh event")
	}
}
