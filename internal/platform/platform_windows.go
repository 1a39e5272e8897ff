//go:build windows

package platform

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/windows"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// windowsAdapter suppresses console windows via CREATE_NO_WINDOW, kills
// process trees with taskkill /T, reads adapter counters through
// GetIfTable2, and drives rasdial for native VPN profiles (spec §4.1, §9).
type windowsAdapter struct{}

// New returns the Adapter for the current build target.
func New() Adapter { return windowsAdapter{} }

const createNoWindow = 0x08000000

func (windowsAdapter) SpawnHidden(argv []string, envAdditions map[string]string) (*Spawned, error) {
	return spawnHiddenCommon(argv, envAdditions, func(cmd *exec.Cmd) {
		cmd.SysProcAttr = &windows.SysProcAttr{
			HideWindow:    true,
			CreationFlags: createNoWindow,
		}
	})
}

func (windowsAdapter) KillPID(pid int) {
	_ = exec.Command("taskkill", "/PID", itoa(pid), "/T", "/F").Run()
}

func (windowsAdapter) KillByName(name string) {
	img := name
	if !strings.HasSuffix(strings.ToLower(img), ".exe") {
		img += ".exe"
	}
	_ = exec.Command("taskkill", "/IM", img, "/T", "/F").Run()
}

// tunnelAdapterHints are the substrings ReadTunnelCounters matches,
// case-insensitively, against each adapter's friendly name/description
// (spec §4.1): tun, tap, wintun, wireguard, sing, vpn, or candyconnect.
var tunnelAdapterHints = []string{"tun", "tap", "wintun", "wireguard", "sing", "vpn", "candyconnect"}

func (windowsAdapter) ReadTunnelCounters() (*TunnelCounters, error) {
	adapters, err := listAdapters()
	if err != nil {
		return nil, vpnerr.New(vpnerr.IO, "enumerate network adapters", err)
	}

	var c TunnelCounters
	matched := 0
	var total TunnelCounters
	for _, a := range adapters {
		total.BytesRecv += a.BytesRecv
		total.BytesSent += a.BytesSent
		lower := strings.ToLower(a.Name + " " + a.Description)
		for _, hint := range tunnelAdapterHints {
			if strings.Contains(lower, hint) {
				c.BytesRecv += a.BytesRecv
				c.BytesSent += a.BytesSent
				matched++
				break
			}
		}
	}
	if matched == 0 {
		if len(adapters) == 0 {
			return &TunnelCounters{}, nil
		}
		// spec §4.1: fall back to the all-adapter total only if no
		// tunnel adapter exists at all.
		return &total, nil
	}
	return &c, nil
}

func (windowsAdapter) IsAdmin() bool {
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	token := windows.Token(0)
	member, err := token.IsMember(sid)
	return err == nil && member
}

func (windowsAdapter) ElevateAndRestart() error {
	self, err := os.Executable()
	if err != nil {
		return vpnerr.New(vpnerr.Platform, "resolve executable for elevation", err)
	}
	verb, _ := windows.UTF16PtrFromString("runas")
	exe, _ := windows.UTF16PtrFromString(self)
	args, _ := windows.UTF16PtrFromString(strings.Join(os.Args[1:], " "))
	err = windows.ShellExecute(0, verb, exe, args, nil, windows.SW_NORMAL)
	if err != nil {
		return vpnerr.New(vpnerr.Platform, "ShellExecute runas", err)
	}
	os.Exit(0)
	return nil
}

func (windowsAdapter) DialNativeVPN(ctx context.Context, p NativeVPNProfile) error {
	add := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
		"Add-VpnConnection", "-Name", p.Name, "-ServerAddress", p.Server,
		"-TunnelType", rasTunnelType(p.Protocol), "-AuthenticationMethod", authMethodOrDefault(p.AuthMethod),
		"-L2tpPsk", p.PSK, "-Force", "-RememberCredential")
	if out, err := add.CombinedOutput(); err != nil {
		return vpnerr.New(vpnerr.Platform, "Add-VpnConnection: "+string(out), err)
	}
	dial := exec.CommandContext(ctx, "rasdial", p.Name, p.Username, p.Password)
	if out, err := dial.CombinedOutput(); err != nil {
		return vpnerr.New(vpnerr.Platform, "rasdial: "+string(out), err)
	}
	return nil
}

func rasTunnelType(protocol string) string {
	if protocol == "ikev2" {
		return "Ikev2"
	}
	return "L2tp"
}

func authMethodOrDefault(method string) string {
	if method == "" {
		return "MSChapv2"
	}
	return method
}

func (windowsAdapter) HangupNativeVPN(name string) error {
	_ = exec.Command("rasdial", name, "/disconnect").Run()
	return exec.Command("powershell", "-NoProfile", "-Command",
		"Remove-VpnConnection", "-Name", name, "-Force").Run()
}

func (windowsAdapter) PollNativeVPN(ctx context.Context, name string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			out, err := exec.Command("rasdial").Output()
			if err != nil {
				return nil
			}
			if !strings.Contains(string(out), name) {
				return nil
			}
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
