// Package turn derives short-lived TURN credentials from a shared secret
// and computes the VoiceStats snapshot advertised alongside them. The
// derivation follows the time-limited TURN REST API convention (username =
// expiry timestamp, credential = base64 HMAC-SHA1 of the username); see
// DESIGN.md for why the client-IP component some coturn deployments add is
// omitted here.
package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"math"
	"net"
	"strconv"
	"time"
)

// ICEServer mirrors the shape a WebRTC client expects for
// RTCConfiguration.iceServers.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// IceConfig is sent in the initial hello frame and from GET /turn.
type IceConfig struct {
	ICEServers []ICEServer `json:"iceServers"`
}

// Config holds the TURN-related settings from internal/v1/config.Config
// that this package needs; kept narrow so callers don't have to import the
// config package just to build an IceConfig.
type Config struct {
	URLs               []string
	Secret             string
	UsernameTTLSeconds int
	RelayMinPort       int
	RelayMaxPort       int
}

const publicSTUNURL = "stun:stun.l.google.com:19302"

// BuildIceConfig derives a fresh TURN credential (if a secret is
// configured) and returns the full ICE server list: a public STUN server
// plus, when enabled, a TURN entry.
func BuildIceConfig(cfg Config, now time.Time) IceConfig {
	servers := []ICEServer{{URLs: []string{publicSTUNURL}}}

	if cfg.Secret == "" || len(cfg.URLs) == 0 {
		return IceConfig{ICEServers: servers}
	}

	ttl := cfg.UsernameTTLSeconds
	if ttl <= 0 {
		ttl = 3600
	}
	username := strconv.FormatInt(now.Add(time.Duration(ttl)*time.Second).Unix(), 10)
	credential := deriveCredential(cfg.Secret, username)

	servers = append(servers, ICEServer{
		URLs:       cfg.URLs,
		Username:   username,
		Credential: credential,
	})
	return IceConfig{ICEServers: servers}
}

// deriveCredential computes base64(hmac-sha1(secret, username)), per the
// TURN REST credential convention.
func deriveCredential(secret, username string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Warning accompanies hello when the configured TURN URLs refer to
// loopback but the connecting client's address is not loopback — a
// deployment footgun (TURN relay unreachable from real clients) worth
// surfacing once per connection rather than debugging from a support
// ticket.
const Warning = "configured TURN server is a loopback address; relay will be unreachable from non-local clients"

// NeedsWarning reports whether the Warning advisory applies, given the
// configured TURN URLs and the connecting client's address.
func NeedsWarning(turnURLs []string, clientAddr string) bool {
	if len(turnURLs) == 0 {
		return false
	}
	if !isLoopbackTurn(turnURLs) {
		return false
	}
	return !isLoopbackHost(clientAddr)
}

func isLoopbackTurn(turnURLs []string) bool {
	for _, u := range turnURLs {
		host := hostFromTurnURL(u)
		if host != "" && isLoopbackHost(host) {
			return true
		}
	}
	return false
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// hostFromTurnURL extracts the host:port portion of a turn:/turns:/stun:
// URL, which net/url does not parse natively (it has no opaque-scheme
// support for "turn:host:port?transport=udp").
func hostFromTurnURL(u string) string {
	rest := u
	for _, prefix := range []string{"turns:", "turn:", "stun:", "stuns:"} {
		if len(rest) > len(prefix) && rest[:len(prefix)] == prefix {
			rest = rest[len(prefix):]
			break
		}
	}
	if i := indexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// VoiceStats is the derived capacity snapshot advertised alongside ICE
// config, recomputed on demand from the room registry's current sizes and
// the configured relay port range.
type VoiceStats struct {
	TurnHost                   string `json:"turnHost,omitempty"`
	RelayPortsTotal            *int   `json:"relayPortsTotal,omitempty"`
	ActiveCalls                int    `json:"activeCalls"`
	PeerLinksEstimate          int    `json:"peerLinksEstimate"`
	RelayPortsUsedEstimate     int    `json:"relayPortsUsedEstimate"`
	CapacityCallsEstimate      *int   `json:"capacityCallsEstimate,omitempty"`
	MaxConferenceUsersEstimate *int   `json:"maxConferenceUsersEstimate,omitempty"`
}

// ComputeVoiceStats derives peer-link, relay-port, and capacity estimates
// from the rooms table. roomSizes is the member count of every currently
// active room (room.Registry.Sizes()); activeCalls is the count of rooms
// with at least 2 members (room.Registry.RoomsWithAtLeast(2)).
func ComputeVoiceStats(cfg Config, roomSizes []int, activeCalls int) VoiceStats {
	stats := VoiceStats{ActiveCalls: activeCalls}

	if len(cfg.URLs) > 0 {
		stats.TurnHost = hostFromTurnURL(cfg.URLs[0])
	}

	peerLinks := 0
	for _, k := range roomSizes {
		peerLinks += k * (k - 1) / 2
	}
	stats.PeerLinksEstimate = peerLinks

	var total int
	haveTotal := cfg.RelayMinPort > 0 && cfg.RelayMaxPort >= cfg.RelayMinPort
	if haveTotal {
		total = cfg.RelayMaxPort - cfg.RelayMinPort + 1
		t := total
		stats.RelayPortsTotal = &t
		stats.RelayPortsUsedEstimate = min(2*peerLinks, total)

		capacityCalls := total / 2
		stats.CapacityCallsEstimate = &capacityCalls

		maxUsers := maxConferenceUsers(capacityCalls)
		stats.MaxConferenceUsersEstimate = &maxUsers
	} else {
		stats.RelayPortsUsedEstimate = 2 * peerLinks
	}

	return stats
}

// maxConferenceUsers finds the largest k such that k*(k-1)/2 <= capacity,
// via the closed form (1 + sqrt(1 + 8*capacity)) / 2, then nudges for any
// floating-point rounding error.
func maxConferenceUsers(capacity int) int {
	if capacity < 0 {
		return 0
	}
	k := int((1 + math.Sqrt(1+8*float64(capacity))) / 2)
	for k > 0 && k*(k-1)/2 > capacity {
		k--
	}
	for (k+1)*k/2 <= capacity {
		k++
	}
	return k
}

// FormatClientIP strips the port from a RemoteAddr-style string, falling
// back to the input unchanged if it isn't host:port (e.g. already a bare
// IP), used to populate hello's clientIp field.
func FormatClientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
