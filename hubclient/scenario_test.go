package hubclient_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/hubclient"
)

// Full lifecycle: hub login, admin exchange, activity for five minutes, then
// half an hour of silence. The admin session must end with the inactivity
// message while the hub session stays intact.
func TestAdminSession_IdleLifecycle(t *testing.T) {
	hub := newHubFixture(t)
	client := hub.newClient(t)
	require.NoError(t, client.Login(context.Background(), "maria@varzea.test", "Sup3rSecret"))
	require.True(t, client.IsSuperAdmin())

	admin := newAdminFixture(t, 2*time.Hour)
	controller := hubclient.NewAdminController(admin.server.URL, client.HubTokens(),
		hubclient.WithClock(admin.mck))
	t.Cleanup(controller.Close)

	require.NoError(t, controller.Start(context.Background()))
	require.True(t, controller.Authenticated())
	require.EqualValues(t, 1, atomic.LoadInt32(&admin.exchangeCalls))

	// Five minutes with activity every minute.
	for minute := 0; minute < 5; minute++ {
		admin.mck.Add(time.Minute)
		controller.Touch()
	}
	require.Equal(t, hubclient.StateActive, controller.State())

	// Thirty silent minutes end the admin session.
	admin.mck.Add(30 * time.Minute)
	require.Eventually(t, func() bool {
		return controller.State() == hubclient.StateIdleTimedOut
	}, asyncWait, asyncPoll)

	require.False(t, controller.Authenticated())
	require.Equal(t, inactivityMsg, controller.Err())
	require.Empty(t, controller.Tokens().Pair().Token)

	// The hub session is untouched by the admin teardown.
	require.True(t, client.Authenticated())
	require.Equal(t, testHubToken, client.HubTokens().Token())
	require.NoError(t, client.RefreshUser(context.Background()))
}
