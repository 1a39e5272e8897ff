package supervisor

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/vpnerr"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

func TestHealthCheckWindowPerRole(t *testing.T) {
	cases := map[Role]time.Duration{
		"xray":        500 * time.Millisecond,
		"sing-box":    500 * time.Millisecond,
		"dnstt-client": 800 * time.Millisecond,
		"openvpn":     1500 * time.Millisecond,
		"ssh-tunnel":  1500 * time.Millisecond,
	}
	for role, want := range cases {
		if got := role.healthCheckWindow(); got != want {
			t.Errorf("%s.healthCheckWindow() = %v, want %v", role, got, want)
		}
	}
}

type fakeReader struct {
	lines []string
	i     int
}

func (f *fakeReader) Read(p []byte) (int, error) {
	if f.i >= len(f.lines) {
		return 0, io.EOF
	}
	line := f.lines[f.i] + "\n"
	n := copy(p, line)
	f.i++
	return n, nil
}

type fakeWaitHandle struct {
	exited bool
	status platform.ExitStatus
}

func (h *fakeWaitHandle) Wait() (platform.ExitStatus, error) { return h.status, nil }
func (h *fakeWaitHandle) TryWait() (platform.ExitStatus, bool) {
	return h.status, h.exited
}

func TestStartReturnsHealthCheckErrorWhenChildDiesEarly(t *testing.T) {
	sink := xlog.New(filepath.Join(t.TempDir(), "candy.logs"))

	spawned := &platform.Spawned{
		PID:    1234,
		Stdout: &fakeReader{lines: []string{"booting", "fatal: bad config"}},
		Stderr: &fakeReader{lines: nil},
		Wait:   &fakeWaitHandle{exited: true, status: platform.ExitStatus{Code: 1}},
	}

	m, err := startSpawned(spawned, "sing-box", sink)
	if err == nil {
		t.Fatal("expected health-check error, got nil")
	}
	if !vpnerr.Is(err, vpnerr.HealthCheck) {
		t.Errorf("error kind = %v, want HealthCheck", err)
	}
	if m != nil {
		t.Errorf("expected nil Member on health-check failure, got %+v", m)
	}
	if !strings.Contains(err.Error(), "sing-box") {
		t.Errorf("error %q does not name the role", err.Error())
	}
}

func TestStartReturnsRunningMemberWhenChildSurvives(t *testing.T) {
	sink := xlog.New(filepath.Join(t.TempDir(), "candy.logs"))

	spawned := &platform.Spawned{
		PID:    5678,
		Stdout: &fakeReader{},
		Stderr: &fakeReader{},
		Wait:   &fakeWaitHandle{exited: false},
	}

	m, err := startSpawned(spawned, "xray", sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PID != 5678 {
		t.Errorf("PID = %d, want 5678", m.PID)
	}
}
