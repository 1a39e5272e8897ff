package session

import (
	"runtime"
	"strings"
	"testing"
)

func TestSSHTunnelSpecTargetsDnsttListenerNotTheServer(t *testing.T) {
	p := DNSTTParams{
		ProxyHost: "127.0.0.1",
		ProxyPort: 7070,
		ServerIP:  "203.0.113.50",
		SSHUser:   "tunnel",
		SSHPass:   "secret",
	}
	dnsttListen := "127.0.0.1:7071"

	spec := sshTunnelSpec(p, dnsttListen)

	argv := spec.Argv
	if contains(argv, p.ServerIP) {
		t.Fatalf("ssh argv must not reference the VPN server directly, got %v", argv)
	}
	if !contains(argv, "127.0.0.1:7070") {
		t.Fatalf("expected -D 127.0.0.1:7070 in argv, got %v", argv)
	}
	if !contains(argv, "7071") {
		t.Fatalf("expected the ssh port to be dnstt-client's listener port 7071, got %v", argv)
	}
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "tunnel@127.0.0.1") {
		t.Fatalf("expected ssh target user@127.0.0.1, got %q", joined)
	}

	if runtime.GOOS == "windows" {
		if argv[0] != "plink.exe" {
			t.Fatalf("expected plink.exe on windows, got %v", argv)
		}
	} else {
		if argv[0] != "sshpass" {
			t.Fatalf("expected sshpass elsewhere, got %v", argv)
		}
	}
}

func contains(argv []string, want string) bool {
	for _, a := range argv {
		if a == want {
			return true
		}
	}
	return false
}
