package session

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/candyconnect/candyconnectd/internal/appdir"
	"github.com/candyconnect/candyconnectd/internal/binaries"
	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

type closedReader struct{}

func (closedReader) Read(p []byte) (int, error) { return 0, io.EOF }

type scriptedWaitHandle struct {
	mu      sync.Mutex
	exited  bool
	status  platform.ExitStatus
	waiters chan struct{}
}

func newScriptedWaitHandle() *scriptedWaitHandle {
	return &scriptedWaitHandle{waiters: make(chan struct{})}
}

func (h *scriptedWaitHandle) exit(status platform.ExitStatus) {
	h.mu.Lock()
	h.exited = true
	h.status = status
	h.mu.Unlock()
	close(h.waiters)
}

func (h *scriptedWaitHandle) Wait() (platform.ExitStatus, error) {
	<-h.waiters
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, nil
}

func (h *scriptedWaitHandle) TryWait() (platform.ExitStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.exited
}

// fakeAdapter implements platform.Adapter for session tests: SpawnHidden
// returns the next scripted Spawned from queue in order; Kill* records
// which PIDs were killed.
type fakeAdapter struct {
	mu      sync.Mutex
	queue   []spawnResult
	killed  []int
	byName  []string
}

type spawnResult struct {
	spawned *platform.Spawned
	err     error
}

func (a *fakeAdapter) SpawnHidden(argv []string, env map[string]string) (*platform.Spawned, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return nil, vpnerrNoMoreScripted()
	}
	r := a.queue[0]
	a.queue = a.queue[1:]
	return r.spawned, r.err
}

func (a *fakeAdapter) KillPID(pid int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.killed = append(a.killed, pid)
}

func (a *fakeAdapter) KillByName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byName = append(a.byName, name)
}

func (a *fakeAdapter) ReadTunnelCounters() (*platform.TunnelCounters, error) { return nil, nil }
func (a *fakeAdapter) IsAdmin() bool                                        { return false }
func (a *fakeAdapter) ElevateAndRestart() error                             { return nil }
func (a *fakeAdapter) DialNativeVPN(ctx context.Context, p platform.NativeVPNProfile) error {
	return nil
}
func (a *fakeAdapter) HangupNativeVPN(name string) error { return nil }
func (a *fakeAdapter) PollNativeVPN(ctx context.Context, name string, interval time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func vpnerrNoMoreScripted() error { return errNoMoreScripted }

var errNoMoreScripted = &scriptedSpawnExhausted{}

type scriptedSpawnExhausted struct{}

func (*scriptedSpawnExhausted) Error() string { return "fakeAdapter: no more scripted spawns" }

func okSpawn(pid int, wh platform.WaitHandle) spawnResult {
	return spawnResult{spawned: &platform.Spawned{PID: pid, Stdout: closedReader{}, Stderr: closedReader{}, Wait: wh}}
}

func newTestOrchestrator(t *testing.T, adapter platform.Adapter) *Orchestrator {
	t.Helper()
	dir, err := appdir.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sink := xlog.New(filepath.Join(dir.Root(), "candy.logs"))
	return New(adapter, dir, sink, binaries.Resolver{ResourceDir: dir.Root()})
}

func TestStartChainRejectsSecondSessionWhileActive(t *testing.T) {
	wh1 := newScriptedWaitHandle()
	adapter := &fakeAdapter{queue: []spawnResult{okSpawn(1, wh1), okSpawn(2, newScriptedWaitHandle())}}
	o := newTestOrchestrator(t, adapter)

	if err := o.startChain([]memberSpec{{Role: "xray", Argv: []string{"xray"}}}, nil); err != nil {
		t.Fatalf("first startChain: %v", err)
	}
	if err := o.startChain([]memberSpec{{Role: "sing-box", Argv: []string{"sing-box"}}}, nil); err == nil {
		t.Fatal("expected second startChain to fail while a session is active")
	}
}

func TestStartChainRollsBackOnSecondMemberFailure(t *testing.T) {
	adapter := &fakeAdapter{queue: []spawnResult{
		okSpawn(11, newScriptedWaitHandle()),
		{err: vpnerrNoMoreScripted()}, // second member fails to spawn
	}}
	o := newTestOrchestrator(t, adapter)

	err := o.startChain([]memberSpec{
		{Role: "dnstt-client", Argv: []string{"dnstt-client"}},
		{Role: "ssh-tunnel", Argv: []string{"ssh"}},
	}, nil)
	if err == nil {
		t.Fatal("expected chain composition to fail")
	}
	if o.Active() {
		t.Fatal("no session should remain active after rollback")
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.killed) != 1 || adapter.killed[0] != 11 {
		t.Errorf("killed = %v, want [11] (rollback of the first member)", adapter.killed)
	}
}

func TestCrossKillAndOneShotDisconnectEvent(t *testing.T) {
	whA := newScriptedWaitHandle()
	whB := newScriptedWaitHandle()
	adapter := &fakeAdapter{queue: []spawnResult{okSpawn(21, whA), okSpawn(22, whB)}}
	o := newTestOrchestrator(t, adapter)

	var events []string
	var mu sync.Mutex
	onEvent := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	if err := o.startChain([]memberSpec{
		{Role: "dnstt-client", Argv: []string{"dnstt-client"}},
		{Role: "ssh-tunnel", Argv: []string{"ssh"}},
	}, onEvent); err != nil {
		t.Fatalf("startChain: %v", err)
	}

	whA.exit(platform.ExitStatus{Code: 1})

	deadline := time.After(2 * time.Second)
	for {
		adapter.mu.Lock()
		n := len(adapter.killed)
		adapter.mu.Unlock()
		mu.Lock()
		nEvents := len(events)
		mu.Unlock()
		if n >= 1 && nEvents >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for cross-kill and the disconnect event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	gotEvents := append([]string(nil), events...)
	mu.Unlock()
	if len(gotEvents) != 1 || gotEvents[0] != eventDisconnected {
		t.Errorf("events = %v, want exactly one %q", gotEvents, eventDisconnected)
	}

	if o.Active() {
		t.Error("session should no longer be active after a member exits")
	}

	adapter.mu.Lock()
	killed := append([]int(nil), adapter.killed...)
	adapter.mu.Unlock()
	if len(killed) != 1 || killed[0] != 22 {
		t.Errorf("killed = %v, want [22] (the surviving member)", killed)
	}
}

func TestStopKillsTrackedMembersAndSweepsByName(t *testing.T) {
	wh := newScriptedWaitHandle()
	adapter := &fakeAdapter{queue: []spawnResult{okSpawn(31, wh)}}
	o := newTestOrchestrator(t, adapter)

	if err := o.startChain([]memberSpec{{Role: "openvpn", Argv: []string{"openvpn"}}}, nil); err != nil {
		t.Fatalf("startChain: %v", err)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if o.Active() {
		t.Error("session should be cleared after Stop")
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.killed) != 1 || adapter.killed[0] != 31 {
		t.Errorf("killed = %v, want [31]", adapter.killed)
	}
	if len(adapter.byName) == 0 {
		t.Error("expected Stop to sweep by binary name")
	}
}
