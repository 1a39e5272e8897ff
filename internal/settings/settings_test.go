package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load(missing) = %+v, want defaults %+v", got, want)
	}
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	// Partial document, with a trailing comma hujson must tolerate.
	doc := []byte(`{
		"primaryDns": "1.1.1.1",
		"proxyPort": 10808,
	}`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PrimaryDNS != "1.1.1.1" {
		t.Errorf("PrimaryDNS = %q, want 1.1.1.1", got.PrimaryDNS)
	}
	if got.SecondaryDNS != Defaults().SecondaryDNS {
		t.Errorf("SecondaryDNS = %q, want default %q", got.SecondaryDNS, Defaults().SecondaryDNS)
	}
	if got.MTU != Defaults().MTU {
		t.Errorf("MTU = %d, want default %d", got.MTU, Defaults().MTU)
	}
}

func TestWithOverrideDoesNotMutateOriginal(t *testing.T) {
	orig := Defaults()
	overridden := orig.WithOverride("127.0.0.1", 7070)

	if orig.ProxyPort == 7070 {
		t.Fatal("WithOverride mutated the receiver")
	}
	if overridden.ProxyHost != "127.0.0.1" || overridden.ProxyPort != 7070 {
		t.Errorf("WithOverride = %+v, want proxyHost/Port overridden", overridden)
	}
}
