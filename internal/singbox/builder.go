package singbox

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/gaissmai/bart"

	"github.com/candyconnect/candyconnectd/internal/settings"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// Mode selects whether the generated TUN inbound is used (routing engine
// mode) or a socks inbound is emitted instead (companion to a proxy-mode
// protocol that doesn't need a virtual adapter).
type Mode int

const (
	// ModeTUN emits a tun inbound (v2ray/tun, wireguard/tun, dnstt/tun).
	ModeTUN Mode = iota
	// ModeProxy emits a socks inbound (wireguard/proxy).
	ModeProxy
)

// Build deterministically assembles the sing-box routing policy for
// settings and serverAddress (spec §4.3, §8 property 1). serverAddress is
// either an IPv4/IPv6 literal or a DNS name; the server-bypass rule is
// shaped accordingly (spec §8 property 2).
func Build(s settings.Settings, serverAddress string, mode Mode) (Config, error) {
	if serverAddress == "" {
		return Config{}, vpnerr.NewConfig("server_address is required", nil)
	}

	cfg := Config{
		Log: LogConfig{Level: "info", Timestamp: true},
		DNS: buildDNS(s),
	}

	inbound, err := buildInbound(s, mode)
	if err != nil {
		return Config{}, err
	}
	cfg.Inbounds = []Inbound{inbound}

	cfg.Outbounds = []Outbound{
		{Type: "socks", Tag: tagSocksOut, Server: s.ProxyHost, ServerPort: s.ProxyPort},
		{Type: "direct", Tag: tagDirectOut},
		{Type: "dns", Tag: tagDNSOut},
		{Type: "block", Tag: tagBlockOut},
	}

	rules, err := buildRules(s, serverAddress)
	if err != nil {
		return Config{}, err
	}
	cfg.Route = RouteConfig{
		Rules:               rules,
		Final:               tagSocksOut,
		AutoDetectInterface: true,
	}

	return cfg, nil
}

// Marshal serializes cfg to JSON text, the Config Builder's single
// serialization point (spec §9).
func Marshal(cfg Config) ([]byte, error) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, vpnerr.New(vpnerr.Config, "marshal sing-box config", err)
	}
	return b, nil
}

func buildDNS(s settings.Settings) DNSConfig {
	return DNSConfig{
		Servers: []DNSServer{
			{Tag: tagDNSRemote, Address: s.PrimaryDNS, DetourTag: tagSocksOut},
			{Tag: tagDNSLocal, Address: s.SecondaryDNS, DetourTag: tagDirectOut},
			{Tag: tagDNSBlock, Address: "rcode://success"},
		},
		Final:    tagDNSRemote,
		Strategy: "prefer_ipv4",
		Cache:    true,
	}
}

func buildInbound(s settings.Settings, mode Mode) (Inbound, error) {
	if mode == ModeProxy {
		return Inbound{
			Type:       "socks",
			Tag:        "socks-in",
			Listen:     "127.0.0.1",
			ListenPort: s.DnsttProxyPort,
			Sniff:      true,
		}, nil
	}

	if s.TunInet4CIDR == "" {
		return Inbound{}, vpnerr.NewConfig("tunInet4CIDR is required for TUN mode", nil)
	}
	return Inbound{
		Type:                   "tun",
		Tag:                    tagTunInbound,
		Inet4Address:           s.TunInet4CIDR,
		Inet6Address:           s.TunInet6CIDR,
		MTU:                    s.MTU,
		AutoRoute:              true,
		StrictRoute:            false,
		Sniff:                  true,
		Stack:                  "gvisor",
		EndpointIndependentNat: true,
		PlatformHTTPProxy: &HTTPProxy{HTTPProxy: HTTPProxyAddr{
			Enabled: true,
			Server:  platformProxyHost,
			Port:    platformProxyPort,
		}},
	}, nil
}

func buildRules(s settings.Settings, serverAddress string) ([]RouteRule, error) {
	var rules []RouteRule

	rules = append(rules, RouteRule{Protocol: "dns", Outbound: tagDNSOut})

	if len(s.CustomDirectDomains) > 0 {
		rules = append(rules, RouteRule{Domain: s.CustomDirectDomains, Outbound: tagDirectOut})
	}
	if len(s.CustomBlockDomains) > 0 {
		rules = append(rules, RouteRule{Domain: s.CustomBlockDomains, Outbound: tagBlockOut})
	}

	bypass, err := serverBypassRule(s, serverAddress)
	if err != nil {
		return nil, err
	}
	rules = append(rules, bypass)

	return rules, nil
}

// serverBypassRule builds the route rule that sends the VPN server's own
// transport traffic through direct-out, preventing the tunnel-of-itself loop
// (spec §4.3 "Semantics notes"). It also checks, via a bart prefix table
// built from the TUN inet4/inet6 CIDRs, that the bypass /32 or /128 doesn't
// fall inside the TUN's own address space — that would make the bypass
// route unreachable once the TUN adapter takes over routing.
func serverBypassRule(s settings.Settings, serverAddress string) (RouteRule, error) {
	addr, err := netip.ParseAddr(serverAddress)
	if err != nil {
		// Not an IP literal: treat as a DNS name.
		return RouteRule{Domain: []string{serverAddress}, Outbound: tagDirectOut}, nil
	}

	bits := 32
	if addr.Is6() {
		bits = 128
	}
	bypassPrefix := netip.PrefixFrom(addr, bits)

	var tun bart.Table[struct{}]
	for _, cidr := range []string{s.TunInet4CIDR, s.TunInet6CIDR} {
		if cidr == "" {
			continue
		}
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return RouteRule{}, vpnerr.NewConfig(fmt.Sprintf("invalid TUN CIDR %q", cidr), nil)
		}
		tun.Insert(p, struct{}{})
	}
	if _, ok := tun.Lookup(addr); ok {
		return RouteRule{}, vpnerr.NewConfig(
			fmt.Sprintf("server address %s falls inside the TUN address space", serverAddress), nil)
	}

	return RouteRule{IPCIDR: []string{bypassPrefix.String()}, Outbound: tagDirectOut}, nil
}
