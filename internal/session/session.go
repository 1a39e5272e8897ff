// Package session implements the chain orchestrator (spec §4.5): per-
// protocol composition of child supervisors into a single bound-lifecycle
// session, cross-kill watchers, and the one-shot vpn-disconnected event.
package session

import (
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/google/uuid"

	"github.com/candyconnect/candyconnectd/internal/appdir"
	"github.com/candyconnect/candyconnectd/internal/binaries"
	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/supervisor"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

// EventSink receives lifecycle events; "vpn-disconnected" is the only event
// the orchestrator currently emits (spec §6).
type EventSink func(event string)

const eventDisconnected = "vpn-disconnected"

// memberSpec describes one child before it is spawned.
type memberSpec struct {
	Role supervisor.Role
	Argv []string
	Env  map[string]string
}

// active is the live session: the set of started Members plus the
// bookkeeping needed to cross-kill and emit the terminal event exactly
// once (spec §3 invariant 2, §4.5).
type active struct {
	id       uuid.UUID
	members  []*supervisor.Member
	once     sync.Once
	onEvent  EventSink
	nativeCancel func() // non-nil only for the native-vpn chain's poll
}

// Orchestrator owns at most one active session process-wide (spec §3
// invariant 1).
type Orchestrator struct {
	Adapter  platform.Adapter
	Dir      *appdir.Dir
	Log      *xlog.Sink
	Binaries binaries.Resolver

	mu      sync.Mutex
	current *active
}

// New builds an Orchestrator wired to the given platform/state/log/binary
// resolution dependencies.
func New(adapter platform.Adapter, dir *appdir.Dir, log *xlog.Sink, bin binaries.Resolver) *Orchestrator {
	return &Orchestrator{Adapter: adapter, Dir: dir, Log: log, Binaries: bin}
}

// errSessionActive is returned when a start_* is attempted while a session
// already lives (spec §3 invariant 1).
var errSessionActive = vpnerr.New(vpnerr.Config, "a session is already active; call stop first", nil)

// startChain implements spec §4.5's composition algorithm: start members in
// order, roll back everything already started on the first failure, then
// install cross-kill watchers and return the live session.
func (o *Orchestrator) startChain(specs []memberSpec, onEvent EventSink) error {
	o.mu.Lock()
	if o.current != nil {
		o.mu.Unlock()
		return errSessionActive
	}
	o.mu.Unlock()

	started := make([]*supervisor.Member, 0, len(specs))
	for _, spec := range specs {
		m, err := supervisor.Start(o.Adapter, spec.Role, spec.Argv, spec.Env, o.Log)
		if err != nil {
			o.killAll(started)
			return err
		}
		started = append(started, m)
	}

	sess := &active{id: uuid.New(), members: started, onEvent: onEvent}

	o.mu.Lock()
	if o.current != nil {
		// Another start_* installed a session while this chain was starting.
		o.mu.Unlock()
		o.killAll(started)
		return errSessionActive
	}
	o.current = sess
	o.mu.Unlock()

	for _, m := range started {
		go o.watchMember(sess, m)
	}
	return nil
}

// watchMember blocks until m exits, then cross-kills every other member of
// the same session and emits the disconnect event exactly once (spec §4.5).
func (o *Orchestrator) watchMember(sess *active, m *supervisor.Member) {
	supervisor.Watch(m, func(status platform.ExitStatus) {
		o.crossKill(sess, m)
		sess.once.Do(func() {
			if sess.nativeCancel != nil {
				sess.nativeCancel()
			}
			o.mu.Lock()
			if o.current == sess {
				o.current = nil
			}
			o.mu.Unlock()
			if sess.onEvent != nil {
				sess.onEvent(eventDisconnected)
			}
		})
	})
}

// crossKill terminates every member of sess other than the one that already
// exited (spec §3 invariant 2). It uses PID-based kill since the exited
// member is already gone; best-effort, never returns an error.
func (o *Orchestrator) crossKill(sess *active, exited *supervisor.Member) {
	g, start := taskgroup.New(nil).Limit(len(sess.members))
	for _, m := range sess.members {
		if m == exited {
			continue
		}
		m := m
		start(func() error {
			o.Adapter.KillPID(m.PID)
			return nil
		})
	}
	_ = g.Wait()
}

// killAll is used during chain composition rollback (spec §4.5 step 4):
// kill every member started so far, in parallel, best-effort.
func (o *Orchestrator) killAll(members []*supervisor.Member) {
	g, start := taskgroup.New(nil).Limit(len(members))
	for _, m := range members {
		m := m
		start(func() error {
			o.Adapter.KillPID(m.PID)
			return nil
		})
	}
	_ = g.Wait()
}

// Stop kills the tracked session's members by PID, then best-effort kills by
// name every running xray, sing-box, dnstt-client, plink, openvpn and xl2tpd
// process, whether or not a session is tracked (spec §4.5). The Unix
// ssh-tunnel leg (sshpass/ssh) is killed only through its tracked PID, and for
// a native-VPN session Stop cancels the presence poll but neither hangs up the
// OS connection nor removes its profile. Idempotent; always returns nil.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	sess := o.current
	o.current = nil
	o.mu.Unlock()

	if sess != nil {
		if sess.nativeCancel != nil {
			sess.nativeCancel()
		}
		for _, m := range sess.members {
			o.Adapter.KillPID(m.PID)
		}
	}

	for _, name := range []string{"xray", "sing-box", "dnstt-client", "plink", "openvpn", "xl2tpd"} {
		o.Adapter.KillByName(name)
	}
	return nil
}

// Active reports whether a session is currently live.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}
