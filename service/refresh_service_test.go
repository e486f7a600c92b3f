package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splatsvc/coralgate/adapters/events"
	"github.com/splatsvc/coralgate/adapters/store"
	"github.com/splatsvc/coralgate/core"
)

var testNow = time.Unix(1700000000, 0)

// stubExchanger counts chain invocations and lets tests inject failures at
// the game and bullet steps.
type stubExchanger struct {
	mu          sync.Mutex
	gameCalls   int
	bulletCalls int

	gameErr        error
	bulletFailures int // fail this many bullet calls, then succeed
	bulletErr      error

	// When set, the game-token step blocks here until the channel is
	// closed, holding a chain run in flight.
	gameGate chan struct{}

	challenge    *core.LoginChallenge
	sessionToken string
	sessionErr   error
	identity     *core.Identity
	identityErr  error
}

func (s *stubExchanger) GenerateLoginChallenge() (*core.LoginChallenge, error) {
	if s.challenge != nil {
		return s.challenge, nil
	}
	return &core.LoginChallenge{State: "st", Verifier: "ver", Challenge: "ch", LoginURL: "https://login.example.com"}, nil
}

func (s *stubExchanger) ExchangeSessionCode(ctx context.Context, redirectedURL string, challenge *core.LoginChallenge) (string, error) {
	if s.sessionErr != nil {
		return "", s.sessionErr
	}
	if s.sessionToken == "" {
		return "session-token", nil
	}
	return s.sessionToken, nil
}

func (s *stubExchanger) FetchIdentity(ctx context.Context, sessionToken string) (*core.Identity, error) {
	if s.identityErr != nil {
		return nil, s.identityErr
	}
	if s.identity != nil {
		return s.identity, nil
	}
	return &core.Identity{Language: "en-US", Country: "US", AccountID: "na-id"}, nil
}

func (s *stubExchanger) GenerateGameToken(ctx context.Context, sessionToken string) (core.TokenRecord, error) {
	s.mu.Lock()
	s.gameCalls++
	gameErr := s.gameErr
	gate := s.gameGate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if gameErr != nil {
		return core.TokenRecord{}, gameErr
	}
	return core.TokenRecord{
		Kind:      core.TokenGameWeb,
		Value:     "fresh-game",
		ExpiresAt: testNow.Unix() + 21600,
	}, nil
}

func (s *stubExchanger) GenerateBulletToken(ctx context.Context, sessionToken, gameToken string) (core.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulletCalls++
	if s.bulletFailures > 0 {
		s.bulletFailures--
		return core.TokenRecord{}, s.bulletErr
	}
	return core.TokenRecord{
		Kind:      core.TokenBullet,
		Value:     "fresh-bullet",
		ExpiresAt: testNow.Unix() + 7000,
	}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// seedUser creates an account holding all three token kinds with the given
// volatile expiries.
func seedUser(t *testing.T, ms *store.MemoryStore, gameExpiry, bulletExpiry int64) *core.UserAccount {
	t.Helper()

	user := &core.UserAccount{ID: "user-1", ExternalID: "ext-1", Language: "en-US", Country: "US"}
	err := ms.CreateUser(context.Background(), user, []core.TokenRecord{
		{Kind: core.TokenSession, Value: "stored-session", ExpiresAt: testNow.Unix() + 63072000},
		{Kind: core.TokenGameWeb, Value: "stored-game", ExpiresAt: gameExpiry},
		{Kind: core.TokenBullet, Value: "stored-bullet", ExpiresAt: bulletExpiry},
	})
	require.NoError(t, err)
	return user
}

func newRefreshService(exchanger *stubExchanger, ms *store.MemoryStore) *RefreshService {
	svc := NewRefreshService(exchanger, ms, events.NopPublisher{}, quietLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestEnsureFreshAlreadyValid(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()+100, testNow.Unix()+100)
	exchanger := &stubExchanger{}
	svc := newRefreshService(exchanger, ms)

	outcome, err := svc.EnsureFresh(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, RefreshAlreadyValid, outcome)
	assert.Zero(t, exchanger.gameCalls)
	assert.Zero(t, exchanger.bulletCalls)
}

func TestEnsureFreshGameWebExpiredRunsFullChain(t *testing.T) {
	ms := store.NewMemoryStore()
	// Bullet still valid: a stale game-web token alone must force the full
	// suffix, because the bullet token depends on it.
	user := seedUser(t, ms, testNow.Unix()-1, testNow.Unix()+100)
	exchanger := &stubExchanger{}
	svc := newRefreshService(exchanger, ms)

	outcome, err := svc.EnsureFresh(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, RefreshedAll, outcome)
	assert.Equal(t, 1, exchanger.gameCalls)
	assert.Equal(t, 1, exchanger.bulletCalls)

	game, err := ms.GetToken(context.Background(), user.ID, core.TokenGameWeb)
	require.NoError(t, err)
	assert.Equal(t, "fresh-game", game.Value)
	bullet, err := ms.GetToken(context.Background(), user.ID, core.TokenBullet)
	require.NoError(t, err)
	assert.Equal(t, "fresh-bullet", bullet.Value)
}

func TestEnsureFreshBulletExpiredRunsBulletOnly(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()+100, testNow.Unix()-1)
	exchanger := &stubExchanger{}
	svc := newRefreshService(exchanger, ms)

	outcome, err := svc.EnsureFresh(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, RefreshedBullet, outcome)
	assert.Zero(t, exchanger.gameCalls)
	assert.Equal(t, 1, exchanger.bulletCalls)

	game, err := ms.GetToken(context.Background(), user.ID, core.TokenGameWeb)
	require.NoError(t, err)
	assert.Equal(t, "stored-game", game.Value)
	bullet, err := ms.GetToken(context.Background(), user.ID, core.TokenBullet)
	require.NoError(t, err)
	assert.Equal(t, "fresh-bullet", bullet.Value)
}

func TestEnsureFreshBulletEscalatesOnce(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()+100, testNow.Unix()-1)
	exchanger := &stubExchanger{
		bulletFailures: 1,
		bulletErr:      core.E(core.KindInvalidToken, "the game-web token has expired", nil),
	}
	svc := newRefreshService(exchanger, ms)

	outcome, err := svc.EnsureFresh(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, RefreshedAll, outcome)
	// One bullet-only attempt, then exactly one escalation to the full chain.
	assert.Equal(t, 1, exchanger.gameCalls)
	assert.Equal(t, 2, exchanger.bulletCalls)
}

func TestEnsureFreshEscalationDoesNotLoop(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()+100, testNow.Unix()-1)
	exchanger := &stubExchanger{
		bulletFailures: 10,
		bulletErr:      core.E(core.KindGetFailure, "unable to get bullet token", nil),
	}
	svc := newRefreshService(exchanger, ms)

	outcome, err := svc.EnsureFresh(context.Background(), user)
	require.Error(t, err)
	assert.Equal(t, RefreshFailed, outcome)
	assert.Equal(t, 1, exchanger.gameCalls)
	assert.Equal(t, 2, exchanger.bulletCalls)
}

func TestRefreshAllAbortsWithoutPartialWrite(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()-1, testNow.Unix()-1)
	exchanger := &stubExchanger{
		bulletFailures: 1,
		bulletErr:      core.E(core.KindGetFailure, "unable to get bullet token", nil),
	}
	svc := newRefreshService(exchanger, ms)

	err := svc.RefreshAll(context.Background(), user)
	require.Error(t, err)

	// A failure on the last step must leave both records untouched.
	game, err := ms.GetToken(context.Background(), user.ID, core.TokenGameWeb)
	require.NoError(t, err)
	assert.Equal(t, "stored-game", game.Value)
	assert.Equal(t, testNow.Unix()-1, game.ExpiresAt)
	bullet, err := ms.GetToken(context.Background(), user.ID, core.TokenBullet)
	require.NoError(t, err)
	assert.Equal(t, "stored-bullet", bullet.Value)
	assert.Equal(t, testNow.Unix()-1, bullet.ExpiresAt)
}

func TestEnsureFreshCoalescesConcurrentCallers(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()-1, testNow.Unix()-1)
	exchanger := &stubExchanger{gameGate: make(chan struct{})}
	svc := newRefreshService(exchanger, ms)

	const callers = 8
	outcomes := make([]RefreshOutcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.EnsureFresh(context.Background(), user)
		}(i)
	}

	// Hold the first chain run in flight until every caller has had time to
	// join the group, then let it finish.
	time.Sleep(100 * time.Millisecond)
	close(exchanger.gameGate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, RefreshedAll, outcomes[i])
	}
	assert.Equal(t, 1, exchanger.gameCalls)
	assert.Equal(t, 1, exchanger.bulletCalls)
}

func TestRefreshAllCoalescesConcurrentCallers(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()+100, testNow.Unix()+100)
	exchanger := &stubExchanger{gameGate: make(chan struct{})}
	svc := newRefreshService(exchanger, ms)

	const callers = 8
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.RefreshAll(context.Background(), user)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(exchanger.gameGate)
	wg.Wait()

	// The forced path must coalesce exactly like the expiry-driven one.
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, 1, exchanger.gameCalls)
	assert.Equal(t, 1, exchanger.bulletCalls)

	game, err := ms.GetToken(context.Background(), user.ID, core.TokenGameWeb)
	require.NoError(t, err)
	assert.Equal(t, "fresh-game", game.Value)
}

func TestEnsureFreshNeverTouchesSessionToken(t *testing.T) {
	ms := store.NewMemoryStore()
	user := seedUser(t, ms, testNow.Unix()-1, testNow.Unix()-1)
	exchanger := &stubExchanger{}
	svc := newRefreshService(exchanger, ms)

	_, err := svc.EnsureFresh(context.Background(), user)
	require.NoError(t, err)

	session, err := ms.GetToken(context.Background(), user.ID, core.TokenSession)
	require.NoError(t, err)
	assert.Equal(t, "stored-session", session.Value)
}
