package singbox

import (
	"github.com/candyconnect/candyconnectd/internal/settings"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// WireGuardParams carries the per-connection fields of start_wireguard
// (spec §6) that don't live in settings.json.
type WireGuardParams struct {
	Server        string
	Port          int
	PrivateKey    string
	PeerPublicKey string
	PreSharedKey  string
	LocalAddresses []string
}

// BuildWireGuard emits the second builder variant from spec §4.3: the same
// inbound as Build (TUN or socks, selected by mode) paired with a wireguard
// outbound instead of socks-out. The server-bypass rule still targets wg.Server
// so the peer endpoint itself is never tunneled.
func BuildWireGuard(s settings.Settings, wg WireGuardParams, mode Mode) (Config, error) {
	if wg.Server == "" || wg.PrivateKey == "" || wg.PeerPublicKey == "" {
		return Config{}, vpnerr.NewConfig("wireguard server, private_key and peer_public_key are required", nil)
	}

	cfg := Config{
		Log: LogConfig{Level: "info", Timestamp: true},
		DNS: buildDNS(s),
	}
	// This document has no socks-out; remote DNS goes through the tunnel.
	cfg.DNS.Servers[0].DetourTag = tagWireguardOut

	inbound, err := buildInbound(s, mode)
	if err != nil {
		return Config{}, err
	}
	cfg.Inbounds = []Inbound{inbound}

	cfg.Outbounds = []Outbound{
		{
			Type:          "wireguard",
			Tag:           tagWireguardOut,
			Server:        wg.Server,
			ServerPort:    wg.Port,
			LocalAddress:  wg.LocalAddresses,
			PrivateKey:    wg.PrivateKey,
			PeerPublicKey: wg.PeerPublicKey,
			PreSharedKey:  wg.PreSharedKey,
			MTU:           s.MTU,
		},
		{Type: "direct", Tag: tagDirectOut},
		{Type: "dns", Tag: tagDNSOut},
		{Type: "block", Tag: tagBlockOut},
	}

	rules, err := buildRules(s, wg.Server)
	if err != nil {
		return Config{}, err
	}
	cfg.Route = RouteConfig{
		Rules:               rules,
		Final:               tagWireguardOut,
		AutoDetectInterface: true,
	}

	return cfg, nil
}
