// Package binaries implements the two-level helper-binary search from spec
// §4.5: first under <resource_dir>/<rel>, then under
// <resource_dir>/resources/<rel>, falling back to a bare name for system
// binaries (openvpn, ssh, sshpass) expected to be on PATH.
package binaries

import (
	"os"
	"path/filepath"
	"runtime"
)

// Resolver locates helper binaries relative to a resource directory (the
// directory the GUI installer lays out xray/, sing-box/, dnstt-client, etc
// under).
type Resolver struct {
	ResourceDir string
}

// resolve returns the first existing candidate for rel under ResourceDir or
// ResourceDir/resources, and whether one was found. If none was found, path
// is rel itself, resolved via PATH at exec time.
func (r Resolver) resolve(rel string) (path string, found bool) {
	for _, c := range []string{
		filepath.Join(r.ResourceDir, rel),
		filepath.Join(r.ResourceDir, "resources", rel),
	} {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	return rel, false
}

// Resolve returns the first existing path for rel, or rel itself.
func (r Resolver) Resolve(rel string) string {
	path, _ := r.resolve(rel)
	return path
}

// exeSuffix is ".exe" on Windows, "" elsewhere.
func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// Xray resolves the Xray binary path.
func (r Resolver) Xray() string { return r.Resolve("xray/xray" + exeSuffix()) }

// SingBox resolves the sing-box binary path.
func (r Resolver) SingBox() string { return r.Resolve("sing-box/sing-box" + exeSuffix()) }

// DnsttClient resolves the dnstt-client binary path.
func (r Resolver) DnsttClient() string { return r.Resolve("dnstt-client" + exeSuffix()) }

// Plink resolves the Windows plink.exe path (SSH client for the dnstt chain).
func (r Resolver) Plink() string { return r.Resolve("plink.exe") }

// OpenVPN resolves the OpenVPN binary: bundled on Windows, system PATH on Unix.
func (r Resolver) OpenVPN() string {
	if runtime.GOOS == "windows" {
		return r.Resolve("openvpn/openvpn.exe")
	}
	return "openvpn"
}

// bundledTools are the (name, relative-path) pairs check_system_executables
// (spec §6) probes for bundled-binary existence. System-PATH tools (ssh,
// sshpass, openvpn on Unix) are never reported missing here: their absence
// surfaces as a SpawnError when the chain actually tries to start them.
func (r Resolver) bundledTools() map[string]string {
	tools := map[string]string{
		"xray":     "xray/xray" + exeSuffix(),
		"sing-box": "sing-box/sing-box" + exeSuffix(),
		"dnstt":    "dnstt-client" + exeSuffix(),
	}
	if runtime.GOOS == "windows" {
		tools["openvpn"] = "openvpn/openvpn.exe"
	}
	return tools
}

// Missing reports which bundled tools are absent from both search locations.
func (r Resolver) Missing() []string {
	var missing []string
	for name, rel := range r.bundledTools() {
		if _, found := r.resolve(rel); !found {
			missing = append(missing, name)
		}
	}
	return missing
}
