package session

import (
	"context"
	"time"

	"github.com/candyconnect/candyconnectd/internal/platform"
)

// pollInterval is the fixed cadence spec §4.5 specifies for native-VPN
// presence polling.
const pollInterval = 3 * time.Second

// profileParams carries start_native_vpn's inputs (spec §6).
type profileParams struct {
	Protocol   string // "l2tp" | "ikev2"
	Name       string
	Server     string
	Port       int
	Username   string
	Password   string
	PSK        string
	AuthMethod string
}

// NativeVPNParams is the exported constructor surface for profileParams;
// command handlers build one of these from the start_native_vpn inputs.
type NativeVPNParams = profileParams

func (p profileParams) toPlatform() platform.NativeVPNProfile {
	return platform.NativeVPNProfile{
		Name:       p.Name,
		Protocol:   p.Protocol,
		Server:     p.Server,
		Port:       p.Port,
		Username:   p.Username,
		Password:   p.Password,
		PSK:        p.PSK,
		AuthMethod: p.AuthMethod,
	}
}

func contextWithCancel() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

// nativePollWaitHandle adapts platform.Adapter.PollNativeVPN's blocking,
// ctx-cancellable poll loop into a platform.WaitHandle: the native-VPN
// Member's "process" is the OS session, and its exit is the poll
// discovering the session is gone (spec §4.5 "native VPN").
type nativePollWaitHandle struct {
	ctx     context.Context
	adapter platform.Adapter
	name    string
}

func (h nativePollWaitHandle) Wait() (platform.ExitStatus, error) {
	err := h.adapter.PollNativeVPN(h.ctx, h.name, pollInterval)
	if err == h.ctx.Err() {
		return platform.ExitStatus{}, nil
	}
	return platform.ExitStatus{}, err
}

func (h nativePollWaitHandle) TryWait() (platform.ExitStatus, bool) {
	// Native sessions have no cheap non-blocking probe; the health-check
	// window is not applicable to this chain (it is composed directly by
	// Orchestrator.StartNativeVPN, bypassing supervisor.Start).
	return platform.ExitStatus{}, false
}
