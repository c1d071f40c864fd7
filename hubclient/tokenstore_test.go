package hubclient_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/hubclient"
)

func TestTokenStore_PairReadsConsistentTriple(t *testing.T) {
	store := hubclient.NewTokenStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Writers always publish a matched triple; readers must never observe a
	// token from one write paired with the CSRF or expiry of another.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				n := writer*1000 + i
				store.SetPair(
					fmt.Sprintf("token-%d", n),
					fmt.Sprintf("csrf-%d", n),
					base.Add(time.Duration(n)*time.Second),
				)
			}
		}(w)
	}

	var readerErr error
	var readerWg sync.WaitGroup
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			pair := store.Pair()
			if pair.Token == "" {
				continue
			}
			var n int
			if _, err := fmt.Sscanf(pair.Token, "token-%d", &n); err != nil {
				readerErr = fmt.Errorf("unexpected token %q", pair.Token)
				return
			}
			if pair.CSRF != fmt.Sprintf("csrf-%d", n) {
				readerErr = fmt.Errorf("token %q paired with csrf %q", pair.Token, pair.CSRF)
				return
			}
			if !pair.ExpiresAt.Equal(base.Add(time.Duration(n) * time.Second)) {
				readerErr = fmt.Errorf("token %q paired with expiry %v", pair.Token, pair.ExpiresAt)
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	readerWg.Wait()
	require.NoError(t, readerErr)
}

func TestTokenStore_ClearDropsWholePair(t *testing.T) {
	store := hubclient.NewTokenStore()
	store.SetPair("token", "csrf", time.Now().Add(time.Hour))

	store.Clear()

	pair := store.Pair()
	require.Empty(t, pair.Token)
	require.Empty(t, pair.CSRF)
	require.True(t, pair.ExpiresAt.IsZero())
}

func TestTokenStore_SetTokenHasNoCSRF(t *testing.T) {
	store := hubclient.NewTokenStore()
	store.SetPair("old", "old-csrf", time.Now().Add(time.Hour))

	store.SetToken("hub-token")

	pair := store.Pair()
	require.Equal(t, "hub-token", pair.Token)
	require.Empty(t, pair.CSRF)
	require.True(t, pair.ExpiresAt.IsZero())
}
