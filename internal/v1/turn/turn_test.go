package turn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIceConfig_NoSecret_OnlyPublicSTUN(t *testing.T) {
	ice := BuildIceConfig(Config{}, time.Now())
	require.Len(t, ice.ICEServers, 1)
	assert.Equal(t, publicSTUNURL, ice.ICEServers[0].URLs[0])
	assert.Empty(t, ice.ICEServers[0].Username)
}

func TestBuildIceConfig_WithSecret_DerivesCredential(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := Config{URLs: []string{"turn:turn.example.com:3478"}, Secret: "s3cret", UsernameTTLSeconds: 3600}

	ice := BuildIceConfig(cfg, now)
	require.Len(t, ice.ICEServers, 2)

	turnServer := ice.ICEServers[1]
	wantUsername := "1700003600"
	assert.Equal(t, wantUsername, turnServer.Username)
	assert.Equal(t, deriveCredential("s3cret", wantUsername), turnServer.Credential)
	assert.NotEmpty(t, turnServer.Credential)
}

func TestBuildIceConfig_DefaultTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := Config{URLs: []string{"turn:turn.example.com:3478"}, Secret: "s3cret"}

	ice := BuildIceConfig(cfg, now)
	require.Len(t, ice.ICEServers, 2)
	assert.Equal(t, "1700003600", ice.ICEServers[1].Username)
}

func TestNeedsWarning(t *testing.T) {
	cases := []struct {
		name       string
		turnURLs   []string
		clientAddr string
		want       bool
	}{
		{"no turn configured", nil, "203.0.113.5", false},
		{"loopback turn, remote client", []string{"turn:127.0.0.1:3478"}, "203.0.113.5:51000", true},
		{"loopback turn, localhost client", []string{"turn:127.0.0.1:3478"}, "127.0.0.1:51000", false},
		{"public turn, remote client", []string{"turn:turn.example.com:3478"}, "203.0.113.5:51000", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsWarning(tc.turnURLs, tc.clientAddr))
		})
	}
}

func TestFormatClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.5", FormatClientIP("203.0.113.5:51000"))
	assert.Equal(t, "bare-ip-no-port", FormatClientIP("bare-ip-no-port"))
}

func TestComputeVoiceStats_EmptyRooms(t *testing.T) {
	stats := ComputeVoiceStats(Config{}, nil, 0)
	assert.Equal(t, 0, stats.ActiveCalls)
	assert.Equal(t, 0, stats.PeerLinksEstimate)
	assert.Equal(t, 0, stats.RelayPortsUsedEstimate)
	assert.Nil(t, stats.RelayPortsTotal)
	assert.Nil(t, stats.CapacityCallsEstimate)
}

func TestComputeVoiceStats_PeerLinksAcrossRooms(t *testing.T) {
	// a 2-member room contributes 1 link, a 3-member room contributes 3 links.
	stats := ComputeVoiceStats(Config{}, []int{2, 3}, 2)
	assert.Equal(t, 2, stats.ActiveCalls)
	assert.Equal(t, 4, stats.PeerLinksEstimate)
	assert.Equal(t, 8, stats.RelayPortsUsedEstimate) // no total configured: 2 * peerLinks
}

func TestComputeVoiceStats_WithRelayPortRange(t *testing.T) {
	cfg := Config{RelayMinPort: 49152, RelayMaxPort: 49152 + 99} // 100 ports
	stats := ComputeVoiceStats(cfg, []int{2, 3}, 2)

	require.NotNil(t, stats.RelayPortsTotal)
	assert.Equal(t, 100, *stats.RelayPortsTotal)
	assert.Equal(t, 8, stats.RelayPortsUsedEstimate) // min(2*4, 100)

	require.NotNil(t, stats.CapacityCallsEstimate)
	assert.Equal(t, 50, *stats.CapacityCallsEstimate) // 100/2

	require.NotNil(t, stats.MaxConferenceUsersEstimate)
	// largest k with k*(k-1)/2 <= 50 is 10 (10*9/2=45 <= 50, 11*10/2=55 > 50)
	assert.Equal(t, 10, *stats.MaxConferenceUsersEstimate)
}

func TestMaxConferenceUsers_KnownValues(t *testing.T) {
	cases := []struct {
		capacity int
		want     int
	}{
		{0, 1},
		{1, 2},  // 2*1/2=1 <= 1
		{3, 3},  // 3*2/2=3 <= 3, 4*3/2=6 > 3
		{45, 10},
		{55, 11},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, maxConferenceUsers(tc.capacity))
	}
}
