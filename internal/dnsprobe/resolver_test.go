package dnsprobe

import "testing"

func TestResolveKnownShorthands(t *testing.T) {
	cases := map[string]Resolved{
		"udp-google":     {"-udp", "8.8.8.8:53"},
		"udp-cloudflare": {"-udp", "1.1.1.1:53"},
		"udp-quad9":      {"-udp", "9.9.9.9:53"},
		"udp-opendns":    {"-udp", "208.67.222.222:53"},
		"dot-google":     {"-dot", "dns.google:853"},
		"dot-cloudflare": {"-dot", "cloudflare-dns.com:853"},
		"dot-quad9":      {"-dot", "dns.quad9.net:853"},
		"doh-google":     {"-doh", "https://dns.google/dns-query"},
		"doh-cloudflare":  {"-doh", "https://cloudflare-dns.com/dns-query"},
		"doh-quad9":      {"-doh", "https://dns.quad9.net/dns-query"},
	}
	for shorthand, want := range cases {
		if got := Resolve(shorthand); got != want {
			t.Errorf("Resolve(%q) = %+v, want %+v", shorthand, got, want)
		}
	}
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	if got := Resolve("not-a-real-resolver"); got != defaultResolved {
		t.Errorf("Resolve(unknown) = %+v, want default %+v", got, defaultResolved)
	}
	if got := Resolve(""); got != defaultResolved {
		t.Errorf("Resolve(empty) = %+v, want default %+v", got, defaultResolved)
	}
}
