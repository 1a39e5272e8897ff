// Package command implements the GUI-facing command surface (spec §6):
// one method per operation, wiring together settings, the chain
// orchestrator, net stats, and the platform adapter.
package command

import (
	"context"
	"encoding/json"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/jellydator/ttlcache/v3"

	"github.com/candyconnect/candyconnectd/internal/appdir"
	"github.com/candyconnect/candyconnectd/internal/binaries"
	"github.com/candyconnect/candyconnectd/internal/netstats"
	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/session"
	"github.com/candyconnect/candyconnectd/internal/settings"
	"github.com/candyconnect/candyconnectd/internal/singbox"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

// latencyCacheTTL bounds how long measure_latency reuses a recent result
// for the same host instead of sending another ICMP echo.
const latencyCacheTTL = 5 * time.Second

// Surface wires the command set to its dependencies. One Surface exists
// per daemon process.
type Surface struct {
	Dir      *appdir.Dir
	Log      *xlog.Sink
	Adapter  platform.Adapter
	Orch     *session.Orchestrator
	Binaries binaries.Resolver
	Stats    *netstats.Tracker

	latency *ttlcache.Cache[string, uint64]
	onEvent session.EventSink
}

// New builds a command Surface. onEvent is invoked with "vpn-disconnected"
// whenever the active session terminates.
func New(dir *appdir.Dir, log *xlog.Sink, adapter platform.Adapter, onEvent session.EventSink) *Surface {
	bin := binaries.Resolver{ResourceDir: dir.Root()}
	cache := ttlcache.New[string, uint64](ttlcache.WithTTL[string, uint64](latencyCacheTTL))
	go cache.Start()
	return &Surface{
		Dir:      dir,
		Log:      log,
		Adapter:  adapter,
		Orch:     session.New(adapter, dir, log, bin),
		Binaries: bin,
		Stats:    &netstats.Tracker{},
		latency:  cache,
		onEvent:  onEvent,
	}
}

func (s *Surface) loadSettings() (settings.Settings, error) {
	return settings.Load(s.Dir.SettingsPath())
}

// StartVPN implements start_vpn(config_json, mode).
func (s *Surface) StartVPN(configJSON []byte, mode string) error {
	set, err := s.loadSettings()
	if err != nil {
		return err
	}
	return s.Orch.StartVPN(set, configJSON, mode, s.onEvent)
}

// StartWireGuardParams is start_wireguard's input tuple (spec §6).
type StartWireGuardParams struct {
	Server         string
	Port           int
	PrivateKey     string
	PeerPublicKey  string
	PreSharedKey   string
	LocalAddresses []string
	Mode           string
}

// StartWireGuard implements start_wireguard(...).
func (s *Surface) StartWireGuard(p StartWireGuardParams) error {
	set, err := s.loadSettings()
	if err != nil {
		return err
	}
	wg := singbox.WireGuardParams{
		Server:         p.Server,
		Port:           p.Port,
		PrivateKey:     p.PrivateKey,
		PeerPublicKey:  p.PeerPublicKey,
		PreSharedKey:   p.PreSharedKey,
		LocalAddresses: p.LocalAddresses,
	}
	return s.Orch.StartWireGuard(set, wg, p.Mode, s.onEvent)
}

// StartOpenVPN implements start_openvpn(ovpn_config, username, password, mode).
// mode is accepted for interface symmetry with the other start_* operations
// but OpenVPN's routing is entirely config-file-driven (spec §3 "openvpn").
func (s *Surface) StartOpenVPN(ovpnConfig, username, password, mode string) error {
	return s.Orch.StartOpenVPN(session.OpenVPNParams{
		Config:   ovpnConfig,
		Username: username,
		Password: password,
	}, s.onEvent)
}

// StartDNSTTParams is start_dnstt's input tuple (spec §6).
type StartDNSTTParams struct {
	Domain    string
	PublicKey string
	Resolver  string
	Mode      string
	ProxyHost string
	ProxyPort int
	ServerIP  string
	SSHUser   string
	SSHPass   string
}

// StartDNSTT implements start_dnstt(...).
func (s *Surface) StartDNSTT(p StartDNSTTParams) error {
	set, err := s.loadSettings()
	if err != nil {
		return err
	}
	return s.Orch.StartDNSTT(set, session.DNSTTParams{
		Domain:    p.Domain,
		PublicKey: p.PublicKey,
		Resolver:  p.Resolver,
		ProxyHost: p.ProxyHost,
		ProxyPort: p.ProxyPort,
		ServerIP:  p.ServerIP,
		SSHUser:   p.SSHUser,
		SSHPass:   p.SSHPass,
	}, p.Mode, s.onEvent)
}

// StartNativeVPN implements start_native_vpn(protocol, server, port,
// username, password, psk, auth_method).
func (s *Surface) StartNativeVPN(protocol, server string, port int, username, password, psk, authMethod string) error {
	return s.Orch.StartNativeVPN(session.NativeVPNParams{
		Protocol:   protocol,
		Name:       "CandyConnect-" + protocol,
		Server:     server,
		Port:       port,
		Username:   username,
		Password:   password,
		PSK:        psk,
		AuthMethod: authMethod,
	}, s.onEvent)
}

// StopVPN implements stop_vpn(): idempotent, always succeeds.
func (s *Surface) StopVPN() error {
	return s.Orch.Stop()
}

// GenerateSingBoxConfig implements generate_sing_box_config(server_address).
func (s *Surface) GenerateSingBoxConfig(serverAddress string) (string, error) {
	set, err := s.loadSettings()
	if err != nil {
		return "", err
	}
	cfg, err := singbox.Build(set, serverAddress, singbox.ModeTUN)
	if err != nil {
		return "", err
	}
	b, err := singbox.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MeasureLatency implements measure_latency(host): one ICMP echo, cached
// briefly per host to spare a flapping GUI from re-pinging on every poll.
func (s *Surface) MeasureLatency(ctx context.Context, host string) (uint64, error) {
	if item := s.latency.Get(host); item != nil {
		return item.Value(), nil
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, vpnerr.New(vpnerr.Parse, "create pinger for "+host, err)
	}
	pinger.Count = 1
	pinger.Timeout = 3 * time.Second
	pinger.SetPrivileged(s.Adapter.IsAdmin())

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return 0, ctx.Err()
	case err := <-done:
		if err != nil {
			return 0, vpnerr.New(vpnerr.Parse, "ping "+host, err)
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, vpnerr.New(vpnerr.Parse, "ping "+host+": no reply", nil)
	}
	ms := uint64(stats.AvgRtt / time.Millisecond)
	s.latency.Set(host, ms, ttlcache.DefaultTTL)
	return ms, nil
}

// CheckSystemExecutables implements check_system_executables().
func (s *Surface) CheckSystemExecutables() []string {
	return s.Binaries.Missing()
}

// IsAdmin implements is_admin().
func (s *Surface) IsAdmin() bool {
	return s.Adapter.IsAdmin()
}

// RestartAsAdmin implements restart_as_admin(): exits the process on success.
func (s *Surface) RestartAsAdmin() error {
	return s.Adapter.ElevateAndRestart()
}

// GetNetworkStats implements get_network_stats().
func (s *Surface) GetNetworkStats() (string, error) {
	stats, err := s.Stats.Sample(s.Adapter)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return "", vpnerr.New(vpnerr.IO, "marshal network stats", err)
	}
	return string(b), nil
}

// ResetNetworkSession implements reset_network_session().
func (s *Surface) ResetNetworkSession() error {
	s.Stats.Reset()
	return nil
}

// WriteLog implements write_log(level, message).
func (s *Surface) WriteLog(level, message string) error {
	return s.Log.Write(level, message)
}

// Close releases the latency cache's background goroutine.
func (s *Surface) Close() {
	s.latency.Stop()
}
