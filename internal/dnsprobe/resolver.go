// Package dnsprobe resolves the dnstt chain's resolver shorthand to a
// (flag, address) pair and performs a preflight reachability probe over
// plain UDP, DNS-over-TLS, or DNS-over-HTTPS (spec §4.5, §6), grounded on
// bassosimone-nop's per-transport dial structure.
package dnsprobe

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/miekg/dns"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// Resolved is a dnstt-client resolver selection: the CLI flag dnstt-client
// expects (-udp, -dot, or -doh) paired with the resolver address.
type Resolved struct {
	Flag    string
	Address string
}

// resolverTable is the exact mapping from spec §6; any shorthand not
// present here falls back to the default row.
var resolverTable = map[string]Resolved{
	"udp-google":     {"-udp", "8.8.8.8:53"},
	"udp-cloudflare": {"-udp", "1.1.1.1:53"},
	"udp-quad9":      {"-udp", "9.9.9.9:53"},
	"udp-opendns":    {"-udp", "208.67.222.222:53"},
	"dot-google":     {"-dot", "dns.google:853"},
	"dot-cloudflare": {"-dot", "cloudflare-dns.com:853"},
	"dot-quad9":      {"-dot", "dns.quad9.net:853"},
	"doh-google":     {"-doh", "https://dns.google/dns-query"},
	"doh-cloudflare": {"-doh", "https://cloudflare-dns.com/dns-query"},
	"doh-quad9":      {"-doh", "https://dns.quad9.net/dns-query"},
}

var defaultResolved = Resolved{"-udp", "8.8.8.8:53"}

// Resolve maps a dnsttResolver shorthand to its (flag, address) pair.
func Resolve(shorthand string) Resolved {
	if r, ok := resolverTable[shorthand]; ok {
		return r
	}
	return defaultResolved
}

// Probe sends one A-record query for probeName through the resolver named
// by shorthand, classifying the transport by the resolver's flag. It
// returns a ParseError-kinded vpnerr if the resolver responds with
// something that isn't a usable DNS message, and an IOError-kinded vpnerr
// if it can't be reached at all within timeout. A DoH resolver answering
// with a non-200 HTTP status yields a Platform-kinded vpnerr.
func Probe(ctx context.Context, shorthand, probeName string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := Resolve(shorthand)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(probeName), dns.TypeA)

	switch r.Flag {
	case "-dot":
		return probeDoT(ctx, r.Address, msg)
	case "-doh":
		return probeDoH(ctx, r.Address, msg)
	default:
		return probeUDP(ctx, r.Address, msg)
	}
}

func probeUDP(ctx context.Context, addr string, msg *dns.Msg) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", addr)
	if err != nil {
		return vpnerr.New(vpnerr.IO, "dial dns-tunnel resolver "+addr, err)
	}
	defer conn.Close()
	return exchangeOverConn(ctx, conn, msg)
}

func probeDoT(ctx context.Context, addr string, msg *dns.Msg) error {
	dialer := tls.Dialer{NetDialer: &net.Dialer{}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return vpnerr.New(vpnerr.IO, "dial dns-over-tls resolver "+addr, err)
	}
	defer conn.Close()
	return exchangeOverConn(ctx, conn, msg)
}

func exchangeOverConn(ctx context.Context, conn net.Conn, msg *dns.Msg) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	co := &dns.Conn{Conn: conn}
	if err := co.WriteMsg(msg); err != nil {
		return vpnerr.New(vpnerr.IO, "write dns-tunnel probe query", err)
	}
	reply, err := co.ReadMsg()
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			// Network-level failure, including the read deadline passing.
			return vpnerr.New(vpnerr.IO, "read dns-tunnel probe reply", err)
		}
		return vpnerr.New(vpnerr.Parse, "read dns-tunnel probe reply", err)
	}
	if reply.Id != msg.Id {
		return vpnerr.New(vpnerr.Parse, "dns-tunnel probe reply id mismatch", nil)
	}
	return nil
}

func probeDoH(ctx context.Context, url string, msg *dns.Msg) error {
	packed, err := msg.Pack()
	if err != nil {
		return vpnerr.New(vpnerr.Parse, "pack dns-over-https probe query", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(packed))
	if err != nil {
		return vpnerr.New(vpnerr.IO, "build dns-over-https request", err)
	}
	req.Header.Set("Content-Type", "application/dns-message")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return vpnerr.New(vpnerr.IO, "dial dns-over-https resolver "+url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return vpnerr.New(vpnerr.Platform, "dns-over-https resolver returned non-200", nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, dns.MaxMsgSize))
	if err != nil {
		return vpnerr.New(vpnerr.IO, "read dns-over-https probe reply", err)
	}
	if err := new(dns.Msg).Unpack(body); err != nil {
		return vpnerr.New(vpnerr.Parse, "unpack dns-over-https probe reply", err)
	}
	return nil
}
