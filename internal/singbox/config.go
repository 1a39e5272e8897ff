// Package singbox deterministically builds a sing-box routing configuration
// document from user settings and a server endpoint (spec §4.3). It is
// data-driven: the document is assembled as structs and serialized exactly
// once with encoding/json, per spec §9's instruction to adopt only the
// structured variant (the original client also carried a string-template
// version; that one is not reproduced).
package singbox

// Config is the top-level sing-box document (spec §3, "Sing-box policy").
type Config struct {
	Log       LogConfig   `json:"log"`
	DNS       DNSConfig   `json:"dns"`
	Inbounds  []Inbound   `json:"inbounds"`
	Outbounds []Outbound  `json:"outbounds"`
	Route     RouteConfig `json:"route"`
}

type LogConfig struct {
	Level     string `json:"level"`
	Timestamp bool   `json:"timestamp"`
}

type DNSServer struct {
	Tag          string `json:"tag"`
	Address      string `json:"address"`
	AddressStrategy string `json:"address_strategy,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	DetourTag    string `json:"detour,omitempty"`
}

type DNSConfig struct {
	Servers  []DNSServer `json:"servers"`
	Final    string      `json:"final"`
	Strategy string      `json:"strategy"`
	Cache    bool        `json:"independent_cache"`
}

type Inbound struct {
	Type                   string   `json:"type"`
	Tag                    string   `json:"tag"`
	Inet4Address           string   `json:"inet4_address,omitempty"`
	Inet6Address           string   `json:"inet6_address,omitempty"`
	MTU                    int      `json:"mtu,omitempty"`
	AutoRoute              bool     `json:"auto_route,omitempty"`
	StrictRoute            bool     `json:"strict_route,omitempty"`
	Sniff                  bool     `json:"sniff,omitempty"`
	Stack                  string   `json:"stack,omitempty"`
	EndpointIndependentNat bool     `json:"endpoint_independent_nat,omitempty"`
	PlatformHTTPProxy      *HTTPProxy `json:"platform,omitempty"`

	// socks inbound fields (ModeProxy, used by wireguard/proxy)
	Listen     string `json:"listen,omitempty"`
	ListenPort int    `json:"listen_port,omitempty"`
}

type HTTPProxy struct {
	HTTPProxy HTTPProxyAddr `json:"http_proxy"`
}

type HTTPProxyAddr struct {
	Enabled bool   `json:"enabled"`
	Server  string `json:"server"`
	Port    int    `json:"server_port"`
}

type Outbound struct {
	Type       string `json:"type"`
	Tag        string `json:"tag"`
	Server     string `json:"server,omitempty"`
	ServerPort int    `json:"server_port,omitempty"`

	// wireguard outbound fields
	LocalAddress []string `json:"local_address,omitempty"`
	PrivateKey   string   `json:"private_key,omitempty"`
	PeerPublicKey string  `json:"peer_public_key,omitempty"`
	PreSharedKey string   `json:"pre_shared_key,omitempty"`
	MTU          int      `json:"mtu,omitempty"`
}

type RouteRule struct {
	Protocol string   `json:"protocol,omitempty"`
	Domain   []string `json:"domain,omitempty"`
	IPCIDR   []string `json:"ip_cidr,omitempty"`
	Outbound string   `json:"outbound"`
}

type RouteConfig struct {
	Rules                []RouteRule `json:"rules"`
	Final                string      `json:"final"`
	AutoDetectInterface  bool        `json:"auto_detect_interface"`
}

const (
	tagDNSRemote = "dns-remote"
	tagDNSLocal  = "dns-local"
	tagDNSBlock  = "dns-block"

	tagSocksOut  = "socks-out"
	tagDirectOut = "direct-out"
	tagDNSOut    = "dns-out"
	tagBlockOut  = "block-out"
	tagWireguardOut = "wireguard-out"

	tagTunInbound = "CandyConnect"

	platformProxyHost = "127.0.0.1"
	platformProxyPort = 2080
)
