package session

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/net/idna"

	"github.com/candyconnect/candyconnectd/internal/dnsprobe"
	"github.com/candyconnect/candyconnectd/internal/settings"
	"github.com/candyconnect/candyconnectd/internal/singbox"
	"github.com/candyconnect/candyconnectd/internal/supervisor"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

func modeOf(mode string) singbox.Mode {
	if mode == "tun" {
		return singbox.ModeTUN
	}
	return singbox.ModeProxy
}

// StartVPN composes the v2ray chain (spec §3, §4.5): xray always runs;
// proxy mode stops there, tun mode adds sing-box configured to route
// through xray's local inbound, with the server endpoint peeked out of the
// user-supplied xray config.
func (o *Orchestrator) StartVPN(s settings.Settings, xrayConfigJSON []byte, mode string, onEvent EventSink) error {
	if err := os.WriteFile(o.Dir.XrayConfigPath(), xrayConfigJSON, 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "write xray_config.json", err)
	}

	specs := []memberSpec{
		{Role: "xray", Argv: []string{o.Binaries.Xray(), "-config", o.Dir.XrayConfigPath()}},
	}

	if mode == "tun" {
		server, err := peekXrayServerAddress(xrayConfigJSON)
		if err != nil {
			return err
		}
		cfg, err := singbox.Build(s, server, singbox.ModeTUN)
		if err != nil {
			return err
		}
		if err := writeSingBoxConfig(o.Dir.SingBoxConfigPath(), cfg); err != nil {
			return err
		}
		specs = append(specs, memberSpec{
			Role: "sing-box",
			Argv: []string{o.Binaries.SingBox(), "run", "-c", o.Dir.SingBoxConfigPath()},
		})
	}

	return o.startChain(specs, onEvent)
}

// peekXrayServerAddress extracts outbounds[0].settings.vnext[0].address from
// a user-supplied xray config, per spec §4.5's "v2ray TUN chain" step.
func peekXrayServerAddress(raw []byte) (string, error) {
	var doc struct {
		Outbounds []struct {
			Settings struct {
				Vnext []struct {
					Address string `json:"address"`
				} `json:"vnext"`
			} `json:"settings"`
		} `json:"outbounds"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", vpnerr.NewConfig("xray config is not valid JSON", raw)
	}
	if len(doc.Outbounds) == 0 || len(doc.Outbounds[0].Settings.Vnext) == 0 {
		return "", vpnerr.NewConfig("xray config missing outbounds[0].settings.vnext[0].address", raw)
	}
	address := doc.Outbounds[0].Settings.Vnext[0].Address
	if address == "" {
		return "", vpnerr.NewConfig("xray config has an empty server address", raw)
	}
	return address, nil
}

func writeSingBoxConfig(path string, cfg singbox.Config) error {
	b, err := singbox.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "write sing_box_config.json", err)
	}
	return nil
}

// StartWireGuard composes the wireguard chain: sing-box alone, configured
// with a wireguard outbound instead of socks-out (spec §3 "wireguard").
func (o *Orchestrator) StartWireGuard(s settings.Settings, wg singbox.WireGuardParams, mode string, onEvent EventSink) error {
	cfg, err := singbox.BuildWireGuard(s, wg, modeOf(mode))
	if err != nil {
		return err
	}
	if err := writeSingBoxConfig(o.Dir.SingBoxConfigPath(), cfg); err != nil {
		return err
	}
	specs := []memberSpec{
		{Role: "sing-box", Argv: []string{o.Binaries.SingBox(), "run", "-c", o.Dir.SingBoxConfigPath()}},
	}
	return o.startChain(specs, onEvent)
}

// OpenVPNParams carries the per-connection fields of start_openvpn that
// don't live in settings.json.
type OpenVPNParams struct {
	Config   string // raw .ovpn text
	Username string
	Password string
}

// StartOpenVPN composes the single-member openvpn chain: write the .ovpn
// file and the auth file, then spawn with --auth-user-pass (spec §3, §6).
// openvpn_auth.txt is removed as soon as openvpn exits, per spec §6.
func (o *Orchestrator) StartOpenVPN(p OpenVPNParams, onEvent EventSink) error {
	if err := os.WriteFile(o.Dir.OpenVPNConfigPath(), []byte(p.Config), 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "write client.ovpn", err)
	}
	authContents := p.Username + "\n" + p.Password + "\n"
	if err := os.WriteFile(o.Dir.OpenVPNAuthPath(), []byte(authContents), 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "write openvpn_auth.txt", err)
	}

	wrappedEvent := func(event string) {
		os.Remove(o.Dir.OpenVPNAuthPath())
		if onEvent != nil {
			onEvent(event)
		}
	}

	specs := []memberSpec{
		{Role: "openvpn", Argv: []string{
			o.Binaries.OpenVPN(), "--config", o.Dir.OpenVPNConfigPath(),
			"--auth-user-pass", o.Dir.OpenVPNAuthPath(),
		}},
	}
	if err := o.startChain(specs, wrappedEvent); err != nil {
		os.Remove(o.Dir.OpenVPNAuthPath())
		return err
	}
	return nil
}

// DNSTTParams carries start_dnstt's inputs (spec §6).
type DNSTTParams struct {
	Domain    string
	PublicKey string
	Resolver  string // shorthand, see dnsprobe.Resolve
	ProxyHost string
	ProxyPort int
	ServerIP  string
	SSHUser   string
	SSHPass   string
}

// StartDNSTT composes the covert-channel chain: dnstt-client listening on
// 127.0.0.1:(proxy_port+1), an SSH tunnel exposing a dynamic SOCKS forward
// on proxy_host:proxy_port through it, and (tun mode only) sing-box pointed
// at that local SOCKS endpoint via a settings override (spec §4.5).
func (o *Orchestrator) StartDNSTT(s settings.Settings, p DNSTTParams, mode string, onEvent EventSink) error {
	resolved := dnsprobe.Resolve(p.Resolver)
	dnsttListen := fmt.Sprintf("127.0.0.1:%d", p.ProxyPort+1)

	domain, err := idna.Lookup.ToASCII(p.Domain)
	if err != nil {
		return vpnerr.NewConfig("dnstt domain is not a valid hostname", []byte(p.Domain))
	}

	specs := []memberSpec{
		{
			Role: "dnstt-client",
			Argv: []string{
				o.Binaries.DnsttClient(),
				resolved.Flag, resolved.Address,
				"-pubkey", p.PublicKey,
				domain,
				dnsttListen,
			},
		},
		sshTunnelSpec(p, dnsttListen),
	}

	if mode == "tun" {
		overridden := s.WithOverride(p.ProxyHost, p.ProxyPort)
		cfg, err := singbox.Build(overridden, p.ServerIP, singbox.ModeTUN)
		if err != nil {
			return err
		}
		if err := writeSingBoxConfig(o.Dir.SingBoxConfigPath(), cfg); err != nil {
			return err
		}
		specs = append(specs, memberSpec{
			Role: "sing-box",
			Argv: []string{o.Binaries.SingBox(), "run", "-c", o.Dir.SingBoxConfigPath()},
		})
	}

	return o.startChain(specs, onEvent)
}

// sshTunnelSpec builds the SSH-leg member spec: plink with password auth on
// Windows, sshpass+ssh with host-key verification disabled elsewhere (spec
// §4.5's dnstt chain detail). The SSH transport connects through the covert
// channel itself — to dnstt-client's own local listener (dnsttListen,
// 127.0.0.1:(proxy_port+1)), never straight to the VPN server — and exposes
// the dynamic SOCKS forward on proxy_host:proxy_port.
func sshTunnelSpec(p DNSTTParams, dnsttListen string) memberSpec {
	sshHost, sshPort, _ := strings.Cut(dnsttListen, ":")
	dynamicForward := fmt.Sprintf("%s:%d", p.ProxyHost, p.ProxyPort)
	if runtime.GOOS == "windows" {
		return memberSpec{
			Role: "ssh-tunnel",
			Argv: []string{
				"plink.exe", "-ssh", "-pw", p.SSHPass, "-batch", "-hostkey", "*",
				"-D", dynamicForward,
				"-P", sshPort,
				p.SSHUser + "@" + sshHost,
				"-N",
			},
		}
	}
	return memberSpec{
		Role: "ssh-tunnel",
		Argv: []string{
			"sshpass", "-p", p.SSHPass,
			"ssh", "-o", "StrictHostKeyChecking=no", "-o", "ServerAliveInterval=15",
			"-D", dynamicForward,
			"-p", sshPort,
			p.SSHUser + "@" + sshHost,
			"-N",
		},
	}
}

// StartNativeVPN composes the single-Member native chain: dial the OS VPN
// stack, then treat a background poll of the OS's session list as the
// member's wait-handle (spec §3, §4.5).
func (o *Orchestrator) StartNativeVPN(profile NativeVPNParams, onEvent EventSink) error {
	ctx, cancel := contextWithCancel()

	if err := o.Adapter.DialNativeVPN(ctx, profile.toPlatform()); err != nil {
		cancel()
		return err
	}

	m := &supervisor.Member{
		Role: "native-vpn",
		Wait: nativePollWaitHandle{ctx: ctx, adapter: o.Adapter, name: profile.Name},
	}

	o.mu.Lock()
	if o.current != nil {
		o.mu.Unlock()
		cancel()
		_ = o.Adapter.HangupNativeVPN(profile.Name)
		return errSessionActive
	}
	sess := &active{members: []*supervisor.Member{m}, onEvent: onEvent, nativeCancel: cancel}
	o.current = sess
	o.mu.Unlock()

	go o.watchMember(sess, m)
	return nil
}
