// Package supervisor starts a chain member's child process, drains its
// output into the log sink, health-checks it over a role-specific window,
// and reports its eventual exit (spec §4.4).
package supervisor

import (
	"bufio"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

// Role names the child's position in a protocol chain; it selects the
// health-check window and prefixes every log line it produces.
type Role string

// healthCheckWindow returns the role-specific delay spec §4.4 waits before
// probing whether a just-started child is still alive: 500ms by default,
// 800ms for dnstt-client (slower DNS-tunnel handshake), 1500ms for OpenVPN
// and the SSH tunnel leg of the dnstt chain (TLS/SSH negotiation).
func (r Role) healthCheckWindow() time.Duration {
	switch r {
	case "dnstt-client":
		return 800 * time.Millisecond
	case "openvpn", "ssh-tunnel":
		return 1500 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Member is a supervised child process that survived its health-check
// window. Its Wait handle resolves when the process eventually exits.
type Member struct {
	Role Role
	PID  int
	Wait platform.WaitHandle

	readers *errgroup.Group
}

// Start spawns argv under adapter with envAdditions layered on, immediately
// begins draining stdout/stderr into sink prefixed "[role]", sleeps role's
// health-check window, and probes the wait-handle without blocking. If the
// process already exited within the window, the reader goroutines are
// joined to flush remaining output and a HealthCheck error is returned
// carrying the exit status. Otherwise the running Member is returned.
func Start(adapter platform.Adapter, role Role, argv []string, envAdditions map[string]string, sink *xlog.Sink) (*Member, error) {
	spawned, err := adapter.SpawnHidden(argv, envAdditions)
	if err != nil {
		return nil, vpnerr.New(vpnerr.Spawn, "start "+string(role), err)
	}
	return startSpawned(spawned, role, sink)
}

// startSpawned is Start's body once a child has already been spawned; split
// out so tests can drive it with a fake platform.Spawned.
func startSpawned(spawned *platform.Spawned, role Role, sink *xlog.Sink) (*Member, error) {
	var g errgroup.Group
	g.Go(func() error { drain(sink, role, "info", spawned.Stdout); return nil })
	g.Go(func() error { drain(sink, role, "error", spawned.Stderr); return nil })

	time.Sleep(role.healthCheckWindow())

	if status, exited := spawned.Wait.TryWait(); exited {
		_ = g.Wait() // flush whatever the child already wrote before it exited
		return nil, vpnerr.New(vpnerr.HealthCheck,
			healthCheckMessage(role, status), nil)
	}

	return &Member{Role: role, PID: spawned.PID, Wait: spawned.Wait, readers: &g}, nil
}

func healthCheckMessage(role Role, status platform.ExitStatus) string {
	if status.Signal != "" {
		return string(role) + " exited during health check (signal " + status.Signal + ")"
	}
	return string(role) + " exited during health check (exit code " + strconv.Itoa(status.Code) + ")"
}

// drain reads r line-by-line and writes each line to sink at level, prefixed
// with the member's role. It returns once r reaches EOF or errors; reads are
// best-effort, so a mid-stream read error is swallowed rather than
// propagated, matching spec §4.4's "drain until the process closes its
// pipes" behavior.
func drain(sink *xlog.Sink, role Role, level string, r interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		_ = sink.Write(level, "["+string(role)+"] "+scanner.Text())
	}
}

// Watch blocks until m's process exits, then invokes onExit with its status.
// Callers run Watch in its own goroutine per member; it is the mechanism
// internal/session uses to detect "one member died" for the cross-kill
// invariant (spec §4.5).
func Watch(m *Member, onExit func(platform.ExitStatus)) {
	status, _ := m.Wait.Wait()
	if m.readers != nil {
		_ = m.readers.Wait()
	}
	onExit(status)
}
