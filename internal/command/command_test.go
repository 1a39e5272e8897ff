package command

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/candyconnect/candyconnectd/internal/appdir"
	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

type fakeAdapter struct {
	admin    bool
	counters *platform.TunnelCounters
}

func (f *fakeAdapter) SpawnHidden(argv []string, env map[string]string) (*platform.Spawned, error) {
	return nil, nil
}
func (f *fakeAdapter) KillPID(pid int)        {}
func (f *fakeAdapter) KillByName(name string) {}
func (f *fakeAdapter) ReadTunnelCounters() (*platform.TunnelCounters, error) {
	return f.counters, nil
}
func (f *fakeAdapter) IsAdmin() bool            { return f.admin }
func (f *fakeAdapter) ElevateAndRestart() error { return nil }
func (f *fakeAdapter) DialNativeVPN(ctx context.Context, p platform.NativeVPNProfile) error {
	return nil
}
func (f *fakeAdapter) HangupNativeVPN(name string) error { return nil }
func (f *fakeAdapter) PollNativeVPN(ctx context.Context, name string, interval time.Duration) error {
	return nil
}

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	dir, err := appdir.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sink := xlog.New(filepath.Join(dir.Root(), "candy.logs"))
	s := New(dir, sink, &fakeAdapter{counters: &platform.TunnelCounters{}}, nil)
	t.Cleanup(s.Close)
	return s
}

func TestIsAdminReflectsAdapter(t *testing.T) {
	s := newTestSurface(t)
	s.Adapter = &fakeAdapter{admin: true}
	if !s.IsAdmin() {
		t.Error("IsAdmin() = false, want true")
	}
}

func TestCheckSystemExecutablesReportsAllMissingInEmptyDir(t *testing.T) {
	s := newTestSurface(t)
	missing := s.CheckSystemExecutables()
	if len(missing) == 0 {
		t.Fatal("expected missing bundled tools in an empty resource dir")
	}
}

func TestWriteLogAppendsRecord(t *testing.T) {
	s := newTestSurface(t)
	if err := s.WriteLog("info", "hello from the GUI"); err != nil {
		t.Fatal(err)
	}
}

func TestGetNetworkStatsThenReset(t *testing.T) {
	s := newTestSurface(t)
	first, err := s.GetNetworkStats()
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("expected non-empty JSON stats")
	}
	if err := s.ResetNetworkSession(); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateSingBoxConfigProducesJSON(t *testing.T) {
	s := newTestSurface(t)
	out, err := s.GenerateSingBoxConfig("203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	if out == "" {
		t.Fatal("expected non-empty config JSON")
	}
}
