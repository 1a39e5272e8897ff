// Package platform is the capability-set abstraction over {Windows, Linux,
// macOS} spec §4.1 and §9 call for: spawn a hidden child, kill a PID tree,
// read tunnel-only interface counters, check/elevate admin rights, and
// dial/hangup a native OS VPN profile. No OS-specific command string ever
// leaks past this package's boundary.
package platform

import (
	"context"
	"time"
)

// WaitHandle resolves when a spawned process exits, yielding its exit
// status. Probing is non-blocking via TryWait; blocking callers use Wait.
type WaitHandle interface {
	// Wait blocks until the process exits and returns its status.
	Wait() (ExitStatus, error)
	// TryWait reports whether the process has already exited, without
	// blocking. ok is false while the process is still running.
	TryWait() (status ExitStatus, ok bool)
}

// ExitStatus is the outcome of a terminated child process.
type ExitStatus struct {
	Code   int
	Signal string // empty unless the process was killed by a signal
}

// Spawned is the result of SpawnHidden.
type Spawned struct {
	PID    int
	Stdout interface{ Read([]byte) (int, error) }
	Stderr interface{ Read([]byte) (int, error) }
	Wait   WaitHandle
}

// TunnelCounters is the sum of received/sent bytes across tunnel-only
// network interfaces (spec §3 "Net snapshot", §4.1).
type TunnelCounters struct {
	BytesRecv uint64
	BytesSent uint64
}

// NativeVPNProfile is the OS profile dial-native-vpn creates or updates
// (spec §4.1).
type NativeVPNProfile struct {
	Name       string // profile / connection name
	Protocol   string // "l2tp" | "ikev2"
	Server     string
	Port       int // 0 selects the protocol's default port
	Username   string
	Password   string
	PSK        string // l2tp pre-shared key
	AuthMethod string // ikev2 auth method
}

// Adapter is the capability set spec §9 requires: every OS-specific
// operation the orchestrator needs, polymorphic over the build target.
type Adapter interface {
	// SpawnHidden launches argv with env additions layered onto the current
	// environment, piping stdout/stderr, without opening a console window
	// on Windows.
	SpawnHidden(argv []string, envAdditions map[string]string) (*Spawned, error)

	// KillPID best-effort force-terminates pid and its descendants. Absence
	// of the target is never an error.
	KillPID(pid int)

	// KillByName best-effort force-terminates every running process whose
	// executable name matches name (spec §4.5 Stop's name-based sweep).
	KillByName(name string)

	// ReadTunnelCounters sums byte counters across tunnel interfaces only.
	// When no tunnel interface exists the result is zero counters, not nil
	// (the Windows adapter instead falls back to the all-adapter total); a
	// failure to read the counters is returned as an error.
	ReadTunnelCounters() (*TunnelCounters, error)

	// IsAdmin reports whether the current process has administrative
	// privileges.
	IsAdmin() bool

	// ElevateAndRestart re-launches the current process with elevated
	// privileges and exits the current one. Only returns on failure to
	// even attempt the re-launch.
	ElevateAndRestart() error

	// DialNativeVPN creates-or-updates profile, connects, and returns nil
	// once the OS tooling reports success (or a PlatformError otherwise).
	// On macOS it returns as soon as `scutil --nc start` succeeds, without
	// waiting for the connection to come up, and it does not create the
	// profile; the Linux kernel L2TP fallback returns once the tunnel and
	// session exist, without any PPP negotiation.
	DialNativeVPN(ctx context.Context, profile NativeVPNProfile) error

	// HangupNativeVPN disconnects and removes the named profile.
	HangupNativeVPN(name string) error

	// PollNativeVPN blocks, polling the OS at a fixed interval, until the
	// named session is no longer reported active; it returns the moment
	// absence is observed. This backs the native-VPN Member's wait-handle
	// (spec §4.5 "native VPN").
	PollNativeVPN(ctx context.Context, name string, interval time.Duration) error
}
