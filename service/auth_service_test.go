package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splatsvc/coralgate/adapters/events"
	"github.com/splatsvc/coralgate/adapters/store"
	"github.com/splatsvc/coralgate/core"
)

const sessionTTL = 63072000 * time.Second

func newAuthService(exchanger *stubExchanger, ms *store.MemoryStore) *AuthService {
	svc := NewAuthService(exchanger, ms, events.NopPublisher{}, sessionTTL, quietLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestBeginLogin(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := newAuthService(&stubExchanger{}, ms)

	challenge, err := svc.BeginLogin(context.Background(), "ext-new")
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.LoginURL)
	assert.NotEmpty(t, challenge.Verifier)
}

func TestBeginLoginExistingUser(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, testNow.Unix()+100, testNow.Unix()+100)
	svc := newAuthService(&stubExchanger{}, ms)

	_, err := svc.BeginLogin(context.Background(), "ext-1")
	assert.ErrorIs(t, err, core.ErrUserExists)
}

func TestCompleteLogin(t *testing.T) {
	ms := store.NewMemoryStore()
	exchanger := &stubExchanger{
		identity: &core.Identity{Language: "ja-JP", Country: "JP", AccountID: "na-id"},
	}
	svc := newAuthService(exchanger, ms)

	user, err := svc.CompleteLogin(context.Background(), "ext-new", "npf://auth#de=code&", &core.LoginChallenge{Verifier: "ver"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ext-new", user.ExternalID)
	assert.Equal(t, "ja-JP", user.Language)
	assert.Equal(t, "JP", user.Country)

	stored, err := ms.GetUser(context.Background(), "ext-new")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	session, err := ms.GetToken(context.Background(), user.ID, core.TokenSession)
	require.NoError(t, err)
	assert.Equal(t, "session-token", session.Value)
	assert.Equal(t, testNow.Add(sessionTTL).Unix(), session.ExpiresAt)

	game, err := ms.GetToken(context.Background(), user.ID, core.TokenGameWeb)
	require.NoError(t, err)
	assert.Equal(t, "fresh-game", game.Value)

	bullet, err := ms.GetToken(context.Background(), user.ID, core.TokenBullet)
	require.NoError(t, err)
	assert.Equal(t, "fresh-bullet", bullet.Value)
}

func TestCompleteLoginExistingUser(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, testNow.Unix()+100, testNow.Unix()+100)
	svc := newAuthService(&stubExchanger{}, ms)

	_, err := svc.CompleteLogin(context.Background(), "ext-1", "npf://auth#de=code&", &core.LoginChallenge{})
	assert.ErrorIs(t, err, core.ErrUserExists)
}

func TestCompleteLoginChainFailureCreatesNothing(t *testing.T) {
	ms := store.NewMemoryStore()
	exchanger := &stubExchanger{
		bulletFailures: 1,
		bulletErr:      core.E(core.KindObsoleteVersion, "app version is obsolete", nil),
	}
	svc := newAuthService(exchanger, ms)

	_, err := svc.CompleteLogin(context.Background(), "ext-new", "npf://auth#de=code&", &core.LoginChallenge{})
	require.Error(t, err)
	assert.Equal(t, core.KindObsoleteVersion, core.KindOf(err))

	_, err = ms.GetUser(context.Background(), "ext-new")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestLogout(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()+100, testNow.Unix()+100)
	svc := newAuthService(&stubExchanger{}, ms)

	require.NoError(t, svc.Logout(context.Background(), "ext-1"))

	_, err := ms.GetUser(context.Background(), "ext-1")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
	_, err = ms.GetToken(context.Background(), user.ID, core.TokenSession)
	assert.ErrorIs(t, err, core.ErrTokenNotFound)
}

func TestLogoutUnknownUser(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := newAuthService(&stubExchanger{}, ms)

	err := svc.Logout(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}
