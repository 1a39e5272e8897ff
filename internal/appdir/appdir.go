// Package appdir resolves the per-application state directory and the fixed
// file layout within it (spec §6, "Persisted state layout"), and seeds it on
// first run the way the original CandyConnect client's init_app_files did.
package appdir

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

const appName = "CandyConnect"

// Dir is the per-application state directory and its well-known members.
type Dir struct {
	root string
}

// New resolves the state directory. If override is non-empty it is used
// verbatim (tests, or an operator-specified --state-dir); otherwise it is
// derived from the OS user-config-directory convention.
func New(override string) (*Dir, error) {
	root := override
	if root == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, vpnerr.New(vpnerr.IO, "resolve user config dir", err)
		}
		root = filepath.Join(base, appName)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, vpnerr.New(vpnerr.IO, "create state dir", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the state directory path.
func (d *Dir) Root() string { return d.root }

func (d *Dir) path(name string) string { return filepath.Join(d.root, name) }

// SettingsPath is settings.json.
func (d *Dir) SettingsPath() string { return d.path("settings.json") }

// AccountPath is account.json (opaque JSON, never interpreted here).
func (d *Dir) AccountPath() string { return d.path("account.json") }

// LogPath is candy.logs, the structured log sink's file.
func (d *Dir) LogPath() string { return d.path("candy.logs") }

// XrayConfigPath is the transient xray config written per session.
func (d *Dir) XrayConfigPath() string { return d.path("xray_config.json") }

// SingBoxConfigPath is the transient sing-box config written per session.
func (d *Dir) SingBoxConfigPath() string { return d.path("sing_box_config.json") }

// OpenVPNConfigPath is the transient .ovpn file written per session.
func (d *Dir) OpenVPNConfigPath() string { return d.path("client.ovpn") }

// OpenVPNAuthPath is the transient OpenVPN username/password file; spec §6
// requires it be deleted when OpenVPN exits.
func (d *Dir) OpenVPNAuthPath() string { return d.path("openvpn_auth.txt") }

// IKEv2ProfilePath is the transient macOS configuration-profile payload.
func (d *Dir) IKEv2ProfilePath() string { return d.path("ikev2_profile.mobileconfig") }

// Bootstrap seeds settings.json, account.json and candy.logs with their
// default contents if they don't already exist. Called once at daemon
// startup; missing-file seeding never overwrites an existing file.
func (d *Dir) Bootstrap(defaultSettings any) error {
	if err := seedJSON(d.SettingsPath(), defaultSettings); err != nil {
		return err
	}
	if err := seedJSON(d.AccountPath(), map[string]any{}); err != nil {
		return err
	}
	if _, err := os.Stat(d.LogPath()); os.IsNotExist(err) {
		if err := os.WriteFile(d.LogPath(), nil, 0o600); err != nil {
			return vpnerr.New(vpnerr.IO, "create candy.logs", err)
		}
	}
	return nil
}

func seedJSON(path string, v any) error {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return vpnerr.New(vpnerr.IO, "marshal default for "+filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "seed "+filepath.Base(path), err)
	}
	return nil
}
