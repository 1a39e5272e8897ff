// Package l2tpnl drives the Linux kernel's L2TP netlink family directly,
// for the native l2tp dial path on Linux (spec §4.1, §4.5 "native VPN").
// Grounded on katalix-go-l2tp-debian's internal/nll2tp: a genetlink
// connection to the "l2tp" generic-netlink family, managed-tunnel and
// session creation via netlink attribute messages.
package l2tpnl

import (
	"fmt"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// Generic-netlink L2TP family command/attribute numbers, per the kernel's
// uapi/linux/l2tp.h (mirrored by katalix-go-l2tp-debian's nll2tp package).
const (
	familyName = "l2tp"

	cmdTunnelCreate = 1
	cmdTunnelDelete = 2
	cmdSessionCreate = 5

	attrConnID      = 9
	attrPeerConnID  = 10
	attrPwType      = 1
	attrEncapType   = 2
	attrProtoVersion = 7
	attrSessionID    = 11
	attrPeerSessionID = 12
	attrUDPSport    = 26
	attrUDPDport    = 27
	attrIPSaddr     = 24
	attrIPDaddr     = 25

	encapTypeUDP = 0
	pwTypePPP    = 7
)

// TunnelConfig is the subset of katalix's TunnelConfig this dial path needs:
// a UDP-encapsulated L2TPv2 tunnel between the host and server.
type TunnelConfig struct {
	TunnelID     uint32
	PeerTunnelID uint32
	LocalAddr    [4]byte
	PeerAddr     [4]byte
	LocalPort    uint16
	PeerPort     uint16
}

// SessionConfig is the PPP pseudowire session nested inside a tunnel.
type SessionConfig struct {
	TunnelID      uint32
	PeerTunnelID  uint32
	SessionID     uint32
	PeerSessionID uint32
}

// Conn is the genetlink connection to the kernel's l2tp family.
type Conn struct {
	family genetlink.Family
	conn   *genetlink.Conn
}

// Dial resolves the "l2tp" generic-netlink family and opens a connection.
func Dial() (*Conn, error) {
	c, err := genetlink.Dial(nil)
	if err != nil {
		return nil, vpnerr.New(vpnerr.Platform, "dial genetlink", err)
	}
	family, err := c.GetFamily(familyName)
	if err != nil {
		c.Close()
		return nil, vpnerr.New(vpnerr.Platform, "resolve l2tp genetlink family (is the l2tp kernel module loaded?)", err)
	}
	return &Conn{family: family, conn: c}, nil
}

// Close releases the underlying genetlink socket.
func (c *Conn) Close() { c.conn.Close() }

// CreateTunnel issues L2TP_CMD_TUNNEL_CREATE for a managed UDP tunnel.
func (c *Conn) CreateTunnel(cfg TunnelConfig) error {
	attrs, err := netlink.MarshalAttributes([]netlink.Attribute{
		{Type: attrConnID, Data: uint32Bytes(cfg.TunnelID)},
		{Type: attrPeerConnID, Data: uint32Bytes(cfg.PeerTunnelID)},
		{Type: attrProtoVersion, Data: uint32Bytes(2)},
		{Type: attrEncapType, Data: uint16Bytes(encapTypeUDP)},
		{Type: attrIPSaddr, Data: cfg.LocalAddr[:]},
		{Type: attrIPDaddr, Data: cfg.PeerAddr[:]},
		{Type: attrUDPSport, Data: uint16Bytes(cfg.LocalPort)},
		{Type: attrUDPDport, Data: uint16Bytes(cfg.PeerPort)},
	})
	if err != nil {
		return vpnerr.New(vpnerr.Platform, "marshal l2tp tunnel attributes", err)
	}
	return c.execute(cmdTunnelCreate, attrs)
}

// CreateSession issues L2TP_CMD_SESSION_CREATE for a PPP pseudowire nested
// in an already-created tunnel.
func (c *Conn) CreateSession(cfg SessionConfig) error {
	attrs, err := netlink.MarshalAttributes([]netlink.Attribute{
		{Type: attrConnID, Data: uint32Bytes(cfg.TunnelID)},
		{Type: attrPeerConnID, Data: uint32Bytes(cfg.PeerTunnelID)},
		{Type: attrSessionID, Data: uint32Bytes(cfg.SessionID)},
		{Type: attrPeerSessionID, Data: uint32Bytes(cfg.PeerSessionID)},
		{Type: attrPwType, Data: uint16Bytes(pwTypePPP)},
	})
	if err != nil {
		return vpnerr.New(vpnerr.Platform, "marshal l2tp session attributes", err)
	}
	return c.execute(cmdSessionCreate, attrs)
}

// DeleteTunnel issues L2TP_CMD_TUNNEL_DELETE, tearing down every session
// nested in it along with it.
func (c *Conn) DeleteTunnel(tunnelID uint32) error {
	attrs, err := netlink.MarshalAttributes([]netlink.Attribute{
		{Type: attrConnID, Data: uint32Bytes(tunnelID)},
	})
	if err != nil {
		return vpnerr.New(vpnerr.Platform, "marshal l2tp tunnel-delete attributes", err)
	}
	return c.execute(cmdTunnelDelete, attrs)
}

func (c *Conn) execute(command uint8, attrs []byte) error {
	req := genetlink.Message{
		Header: genetlink.Header{Command: command, Version: c.family.Version},
		Data:   attrs,
	}
	_, err := c.conn.Execute(req, c.family.ID, netlink.Request|netlink.Acknowledge)
	if err != nil {
		return vpnerr.New(vpnerr.Platform, fmt.Sprintf("l2tp genetlink command %d", command), err)
	}
	return nil
}

func uint32Bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func uint16Bytes(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}
