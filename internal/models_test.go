package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthcheck_OnlinePercent(t *testing.T) {
	t.Run("zero when no samples", func(t *testing.T) {
		h := Healthcheck{}
		require.Equal(t, 0.0, h.OnlinePercent())
	})

	t.Run("rounds to two decimals", func(t *testing.T) {
		h := Healthcheck{OnlineCounter: 1, TotalCounter: 3}
		require.Equal(t, 33.33, h.OnlinePercent())
	})

	t.Run("full uptime is exactly 100", func(t *testing.T) {
		h := Healthcheck{OnlineCounter: 7, TotalCounter: 7}
		require.Equal(t, 100.0, h.OnlinePercent())
	})

	t.Run("always within bounds", func(t *testing.T) {
		for online := int64(0); online <= 10; online++ {
			h := Healthcheck{OnlineCounter: online, TotalCounter: 10}
			p := h.OnlinePercent()
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 100.0)
		}
	})
}

func TestAirdropStatus_Terminal(t *testing.T) {
	require.True(t, AirdropSuccess.Terminal())
	require.True(t, AirdropRevert.Terminal())
	require.False(t, AirdropWaitingForRelay.Terminal())
	require.False(t, AirdropInsufficientBalance.Terminal())
	require.False(t, AirdropPending.Terminal())
}
