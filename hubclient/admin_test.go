package hubclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/hubclient"
)

const (
	testHubToken  = "hub-token"
	inactivityMsg = "admin session ended due to inactivity"
	expiredMsg    = "admin session expired"
	asyncWait     = 2 * time.Second
	asyncPoll     = 5 * time.Millisecond
	settleWait    = 50 * time.Millisecond
)

// adminFixture runs a fake hub backend whose admin session expiries are
// derived from the mock clock, so both controller timers can be driven with
// simulated time.
type adminFixture struct {
	mck         *clock.Mock
	server      *httptest.Server
	hubTokens   *hubclient.TokenStore
	adminExpiry time.Duration

	exchangeCalls int32
	refreshCalls  int32
	logoutCalls   int32
	failRefresh   int32
	failLogout    int32
}

func newAdminFixture(t *testing.T, adminExpiry time.Duration) *adminFixture {
	t.Helper()

	f := &adminFixture{
		mck:         clock.NewMock(),
		hubTokens:   hubclient.NewTokenStore(),
		adminExpiry: adminExpiry,
	}
	f.hubTokens.SetToken(testHubToken)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin-api/api/auth/hub-exchange", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			HubToken string `json:"hub_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.HubToken != testHubToken {
			writeError(w, http.StatusUnauthorized, "hub session invalid or expired")
			return
		}
		n := atomic.AddInt32(&f.exchangeCalls, 1)
		f.writeSession(w, fmt.Sprintf("exchange-%d", n))
	})
	mux.HandleFunc("POST /admin-api/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&f.failRefresh) != 0 {
			writeError(w, http.StatusUnauthorized, expiredMsg)
			return
		}
		n := atomic.AddInt32(&f.refreshCalls, 1)
		f.writeSession(w, fmt.Sprintf("refresh-%d", n))
	})
	mux.HandleFunc("POST /admin-api/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.logoutCalls, 1)
		if atomic.LoadInt32(&f.failLogout) != 0 {
			writeError(w, http.StatusInternalServerError, "backend down")
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /admin-api/api/protected", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "token revoked by server")
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *adminFixture) writeSession(w http.ResponseWriter, stamp string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token":      "token-" + stamp,
		"csrf_token": "csrf-" + stamp,
		"expires_at": f.mck.Now().Add(f.adminExpiry),
		"user": map[string]any{
			"id":           "admin-1",
			"name":         "Root Admin",
			"email":        "root@varzea.test",
			"is_superuser": true,
		},
	})
}

func (f *adminFixture) newController(t *testing.T, options ...hubclient.AdminOption) *hubclient.AdminController {
	t.Helper()
	opts := append([]hubclient.AdminOption{hubclient.WithClock(f.mck)}, options...)
	controller := hubclient.NewAdminController(f.server.URL, f.hubTokens, opts...)
	t.Cleanup(controller.Close)
	return controller
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func TestAdminController_ExchangeOnStart(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	controller := f.newController(t)

	require.NoError(t, controller.Start(context.Background()))

	require.Equal(t, hubclient.StateActive, controller.State())
	require.True(t, controller.Authenticated())
	require.EqualValues(t, 1, atomic.LoadInt32(&f.exchangeCalls))

	pair := controller.Tokens().Pair()
	require.Equal(t, "token-exchange-1", pair.Token)
	require.Equal(t, "csrf-exchange-1", pair.CSRF)
	require.True(t, pair.ExpiresAt.Equal(f.mck.Now().Add(15*time.Minute)))

	user := controller.User()
	require.NotNil(t, user)
	require.True(t, user.IsSuperAdmin)
}

func TestAdminController_NoHubTokenNoNetworkCall(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	f.hubTokens.Clear()
	controller := f.newController(t)

	err := controller.Start(context.Background())

	require.ErrorIs(t, err, hubclient.ErrHubTokenMissing)
	require.Equal(t, hubclient.StateErrored, controller.State())
	require.Equal(t, "hub token missing", controller.Err())
	require.False(t, controller.Authenticated())
	require.EqualValues(t, 0, atomic.LoadInt32(&f.exchangeCalls))
}

func TestAdminController_ExchangeFailureKeepsServerMessage(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	f.hubTokens.SetToken("stale-token")
	controller := f.newController(t)

	err := controller.Start(context.Background())

	require.Error(t, err)
	require.Equal(t, hubclient.StateErrored, controller.State())
	require.Equal(t, "hub session invalid or expired", controller.Err())
	require.Empty(t, controller.Tokens().Pair().Token)
}

func TestAdminController_RemountSkipsExchange(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	tokens := hubclient.NewTokenStore()
	tokens.SetPair("existing-token", "existing-csrf", f.mck.Now().Add(10*time.Minute))
	controller := f.newController(t, hubclient.WithAdminTokenStore(tokens))

	require.NoError(t, controller.Start(context.Background()))

	require.Equal(t, hubclient.StateActive, controller.State())
	require.EqualValues(t, 0, atomic.LoadInt32(&f.exchangeCalls))
	require.Equal(t, "existing-token", controller.Tokens().Pair().Token)
}

func TestAdminController_RefreshReArmsAgainstNewExpiry(t *testing.T) {
	f := newAdminFixture(t, 5*time.Minute)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	// Refresh fires one minute before the 5 minute expiry.
	f.mck.Add(4 * time.Minute)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.refreshCalls) == 1
	}, asyncWait, asyncPoll)

	require.Eventually(t, func() bool {
		return controller.Tokens().Pair().Token == "token-refresh-1"
	}, asyncWait, asyncPoll)
	pair := controller.Tokens().Pair()
	require.Equal(t, "csrf-refresh-1", pair.CSRF)

	// The next refresh must track the new expiry (minute 9), not the old one.
	f.mck.Add(3*time.Minute + 59*time.Second)
	time.Sleep(settleWait)
	require.EqualValues(t, 1, atomic.LoadInt32(&f.refreshCalls))

	f.mck.Add(2 * time.Second)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.refreshCalls) == 2
	}, asyncWait, asyncPoll)
	require.Equal(t, hubclient.StateActive, controller.State())
}

func TestAdminController_RefreshFailureEndsSession(t *testing.T) {
	f := newAdminFixture(t, 5*time.Minute)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	atomic.StoreInt32(&f.failRefresh, 1)
	f.mck.Add(4 * time.Minute)

	require.Eventually(t, func() bool {
		return controller.State() == hubclient.StateExpired
	}, asyncWait, asyncPoll)
	require.Equal(t, expiredMsg, controller.Err())
	require.Empty(t, controller.Tokens().Pair().Token)
}

func TestAdminController_PastDueExpiryRefreshesImmediately(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	tokens := hubclient.NewTokenStore()
	tokens.SetPair("expired-token", "expired-csrf", f.mck.Now().Add(-time.Minute))
	controller := f.newController(t, hubclient.WithAdminTokenStore(tokens))

	require.NoError(t, controller.Start(context.Background()))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.refreshCalls) == 1
	}, asyncWait, asyncPoll)
	require.Eventually(t, func() bool {
		return controller.Tokens().Pair().Token == "token-refresh-1"
	}, asyncWait, asyncPoll)
}

func TestAdminController_IdleTimeout(t *testing.T) {
	f := newAdminFixture(t, 2*time.Hour)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	f.mck.Add(30 * time.Minute)

	require.Eventually(t, func() bool {
		return controller.State() == hubclient.StateIdleTimedOut
	}, asyncWait, asyncPoll)
	require.Equal(t, inactivityMsg, controller.Err())
	require.Empty(t, controller.Tokens().Pair().Token)
	require.False(t, controller.Authenticated())
}

func TestAdminController_TouchExtendsIdleDeadline(t *testing.T) {
	f := newAdminFixture(t, 2*time.Hour)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	f.mck.Add(20 * time.Minute)
	controller.Touch()

	// 20 more minutes is still inside the window measured from the touch.
	f.mck.Add(20 * time.Minute)
	time.Sleep(settleWait)
	require.Equal(t, hubclient.StateActive, controller.State())

	f.mck.Add(10 * time.Minute)
	require.Eventually(t, func() bool {
		return controller.State() == hubclient.StateIdleTimedOut
	}, asyncWait, asyncPoll)
}

func TestAdminController_LogoutClearsLocallyWhenRemoteFails(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	atomic.StoreInt32(&f.failLogout, 1)
	controller.Logout(context.Background())

	require.Equal(t, hubclient.StateLoggedOut, controller.State())
	require.False(t, controller.Authenticated())
	require.Empty(t, controller.Tokens().Pair().Token)
	require.EqualValues(t, 1, atomic.LoadInt32(&f.logoutCalls))
}

func TestAdminController_InvalidateSurfacesServerMessage(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	controller.Invalidate("token revoked by server")

	require.Equal(t, hubclient.StateErrored, controller.State())
	require.Equal(t, "token revoked by server", controller.Err())
	require.Empty(t, controller.Tokens().Pair().Token)

	// A second terminate event must not overwrite the first outcome.
	controller.Invalidate("a different message")
	require.Equal(t, "token revoked by server", controller.Err())
}

func TestAdminController_DoDispatchesInvalidationOn401(t *testing.T) {
	f := newAdminFixture(t, 15*time.Minute)
	controller := f.newController(t)
	require.NoError(t, controller.Start(context.Background()))

	err := controller.Do(context.Background(), http.MethodPost, "/admin-api/api/protected", nil, nil)

	require.Error(t, err)
	require.True(t, hubclient.IsUnauthorized(err))
	require.Equal(t, hubclient.StateErrored, controller.State())
	require.Equal(t, "token revoked by server", controller.Err())
}
