package l2tpnl

import (
	"os"

	"github.com/pelletier/go-toml"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// Profile is the on-disk shape of a saved L2TP native-VPN profile, so the
// GUI can offer "reconnect to last l2tp server" without re-prompting for
// every field.
type Profile struct {
	Name     string `toml:"name"`
	Server   string `toml:"server"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	PSK      string `toml:"psk"`
}

// WriteProfile persists p as TOML at path, creating or truncating it.
func WriteProfile(path string, p Profile) error {
	b, err := toml.Marshal(p)
	if err != nil {
		return vpnerr.New(vpnerr.Config, "marshal l2tp profile", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return vpnerr.New(vpnerr.IO, "write l2tp profile "+path, err)
	}
	return nil
}

// ReadProfile loads a previously-saved TOML profile from path.
func ReadProfile(path string) (Profile, error) {
	var p Profile
	b, err := os.ReadFile(path)
	if err != nil {
		return p, vpnerr.New(vpnerr.IO, "read l2tp profile "+path, err)
	}
	if err := toml.Unmarshal(b, &p); err != nil {
		return p, vpnerr.New(vpnerr.Config, "parse l2tp profile "+path, err)
	}
	return p, nil
}
