// Package settings reads and defaults the user settings document (spec §3,
// §6). Missing keys never fail the orchestrator: Load always returns a fully
// populated Settings, applying defaults for anything absent from disk.
package settings

import (
	"os"

	"github.com/tailscale/hujson"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// Settings is the recognized-option document from spec §6.
type Settings struct {
	AutoConnect     bool   `json:"autoConnect"`
	LaunchAtStartup bool   `json:"launchAtStartup"`
	SelectedProfile string `json:"selectedProfile"`
	SelectedProtocol string `json:"selectedProtocol"`
	Theme           string `json:"theme"`
	Language        string `json:"language"`

	ProxyHost string `json:"proxyHost"`
	ProxyPort int    `json:"proxyPort"`
	ProxyMode string `json:"proxyMode"`
	ProxyType string `json:"proxyType"`

	V2rayCore     string `json:"v2rayCore"`
	WireguardCore string `json:"wireguardCore"`

	TunInet4CIDR string `json:"tunInet4CIDR"`
	TunInet6CIDR string `json:"tunInet6CIDR"`
	MTU          int    `json:"mtu"`

	PrimaryDNS         string   `json:"primaryDns"`
	SecondaryDNS       string   `json:"secondaryDns"`
	CustomDirectDomains []string `json:"customDirectDomains"`
	CustomBlockDomains  []string `json:"customBlockDomains"`

	DnsttResolver  string `json:"dnsttResolver"`
	DnsttProxyPort int    `json:"dnsttProxyPort"`

	L2TPPsk        string `json:"l2tpPsk"`
	IKEv2AuthMethod string `json:"ikev2AuthMethod"`

	AutoReconnect bool `json:"autoReconnect"`
	KillSwitch    bool `json:"killSwitch"`

	DNSLeakProtection   bool `json:"dnsLeakProtection"`
	SplitTunneling      bool `json:"splitTunneling"`
	AdBlocking          bool `json:"adBlocking"`
	MalwareProtection   bool `json:"malwareProtection"`
	PhishingPrevention  bool `json:"phishingPrevention"`
	CryptominerBlocking bool `json:"cryptominerBlocking"`
	DirectCountryAccess bool `json:"directCountryAccess"`
}

// Defaults returns the zero-config Settings, matching spec §4.3's defaults
// where named and the original CandyConnect client's init_app_files values
// otherwise.
func Defaults() Settings {
	return Settings{
		SelectedProtocol: "v2ray",
		Theme:            "light",
		Language:         "en",

		ProxyHost: "127.0.0.1",
		ProxyPort: 10808,
		ProxyMode: "proxy",
		ProxyType: "socks",

		V2rayCore:     "sing-box",
		WireguardCore: "amnezia",

		TunInet4CIDR: "172.19.0.1/30",
		TunInet6CIDR: "fdfe:dcba:9876::1/126",
		MTU:          9000,

		PrimaryDNS:   "8.8.8.8",
		SecondaryDNS: "1.1.1.1",

		DnsttResolver:  "udp-google",
		DnsttProxyPort: 10808,

		AutoReconnect:       true,
		DNSLeakProtection:   true,
		AdBlocking:          true,
		MalwareProtection:   true,
		DirectCountryAccess: true,
	}
}

// Load reads settings.json at path, tolerating hand-edited JSON (trailing
// commas, comments) via hujson, and filling any field whose key is absent
// from the document from Defaults. A key present with a zero value (for
// example an empty string) keeps that zero value. A missing file is not an
// error: Load returns Defaults().
func Load(path string) (Settings, error) {
	s := Defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, vpnerr.New(vpnerr.IO, "read settings.json", err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return s, vpnerr.NewConfig("settings.json is not valid JSON", raw)
	}

	// Decode onto the defaulted struct so any key absent from disk keeps
	// its default rather than zeroing out.
	if err := unmarshalOnto(&s, standard); err != nil {
		return s, vpnerr.NewConfig("settings.json failed to decode", raw)
	}
	return s, nil
}

// Save writes s to path as indented JSON.
func Save(path string, s Settings) error {
	b, err := marshalIndent(s)
	if err != nil {
		return vpnerr.New(vpnerr.IO, "marshal settings.json", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "write settings.json", err)
	}
	return nil
}

// WithOverride returns a copy of s with proxyHost/proxyPort replaced. Used by
// the dnstt/TUN chain to point the sing-box config builder at the local SSH
// SOCKS endpoint without touching settings.json on disk (spec §9's
// re-architecture of the "mutate settings.json, build, restore" race).
func (s Settings) WithOverride(proxyHost string, proxyPort int) Settings {
	out := s
	out.ProxyHost = proxyHost
	out.ProxyPort = proxyPort
	return out
}
