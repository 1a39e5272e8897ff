package binaries

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveTwoLevelSearch(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{ResourceDir: dir}

	// Neither location exists: bare name falls through.
	if got := r.Resolve("dnstt-client"); got != "dnstt-client" {
		t.Errorf("Resolve(no candidate) = %q, want bare name", got)
	}

	// Second-level resources/ directory wins when present.
	nested := filepath.Join(dir, "resources", "dnstt-client")
	if err := os.MkdirAll(filepath.Dir(nested), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nested, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve("dnstt-client"); got != nested {
		t.Errorf("Resolve(resources/) = %q, want %q", got, nested)
	}

	// First-level directory wins over resources/ when both exist.
	top := filepath.Join(dir, "dnstt-client")
	if err := os.WriteFile(top, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve("dnstt-client"); got != top {
		t.Errorf("Resolve(first level) = %q, want %q", got, top)
	}
}

func TestOpenVPNPlatformSpecific(t *testing.T) {
	r := Resolver{ResourceDir: t.TempDir()}
	got := r.OpenVPN()
	if runtime.GOOS == "windows" {
		if filepath.Base(got) != "openvpn.exe" {
			t.Errorf("OpenVPN() = %q on windows", got)
		}
	} else if got != "openvpn" {
		t.Errorf("OpenVPN() = %q, want bare 'openvpn' on unix", got)
	}
}

func TestMissingReportsAbsentBundledTools(t *testing.T) {
	r := Resolver{ResourceDir: t.TempDir()}
	missing := r.Missing()
	if len(missing) == 0 {
		t.Fatal("expected all bundled tools to be reported missing in an empty resource dir")
	}
}
