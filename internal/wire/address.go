package wire

import (
	"bytes"
	"fmt"
	"io"
	"net"
)

// Services is a bitset of peer capabilities. Only bit 0 is modelled.
type Services uint64

const ServiceNodeNetwork Services = 1 << 0

func (s Services) HasNodeNetwork() bool { return s&ServiceNodeNetwork != 0 }

// IPAddress is (Services, IPv6 address, port). IPv4 peers are represented as
// IPv4-mapped IPv6 addresses; the port is always big-endian regardless of
// every other multibyte field being little-endian.
type IPAddress struct {
	Services Services
	IP       [16]byte
	Port     uint16
}

// NewIPAddress builds an IPAddress from a dotted-quad or IPv6 literal,
// mapping IPv4 into the ::ffff:a.b.c.d form.
func NewIPAddress(ip string, port uint16, services Services) IPAddress {
	addr := IPAddress{Services: services, Port: port}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		parsed = net.ParseIP("0.0.0.0")
	}

	if v4 := parsed.To4(); v4 != nil {
		addr.IP[10] = 0xff
		addr.IP[11] = 0xff
		copy(addr.IP[12:16], v4)
	} else {
		copy(addr.IP[:], parsed.To16())
	}

	return addr
}

// IsIPv4Mapped reports whether the address is an IPv4-mapped IPv6 address.
func (a IPAddress) IsIPv4Mapped() bool {
	for i := 0; i < 10; i++ {
		if a.IP[i] != 0 {
			return false
		}
	}
	return a.IP[10] == 0xff && a.IP[11] == 0xff
}

// String renders dotted-quad for IPv4-mapped addresses, bracketed IPv6 hex
// otherwise.
func (a IPAddress) String() string {
	if a.IsIPv4Mapped() {
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[12], a.IP[13], a.IP[14], a.IP[15], a.Port)
	}
	return fmt.Sprintf("[%s]:%d", net.IP(a.IP[:]).String(), a.Port)
}

// Encode writes Services (LE) + 16-byte IP + Port (BigEndian flag).
func (a IPAddress) Encode(buf *bytes.Buffer) {
	WriteUint64(buf, uint64(a.Services))
	buf.Write(a.IP[:])
	WriteUint16BE(buf, a.Port)
}

func DecodeIPAddress(r io.Reader) (IPAddress, error) {
	var a IPAddress
	services, err := ReadUint64(r)
	if err != nil {
		return a, err
	}
	a.Services = Services(services)
	if _, err := io.ReadFull(r, a.IP[:]); err != nil {
		return a, newDecodeError(ErrShortRead, "reading address IP: %v", err)
	}
	port, err := ReadUint16BE(r)
	if err != nil {
		return a, err
	}
	a.Port = port
	return a, nil
}

// AddrEntry is a single entry of an addr message: a ShortFormat timestamp
// paired with an IPAddress.
type AddrEntry struct {
	Time uint32
	Addr IPAddress
}

func (e AddrEntry) Encode(buf *bytes.Buffer) {
	WriteTimeShort(buf, e.Time)
	e.Addr.Encode(buf)
}

func DecodeAddrEntry(r io.Reader) (AddrEntry, error) {
	var e AddrEntry
	t, err := ReadTimeShort(r)
	if err != nil {
		return e, err
	}
	e.Time = t
	addr, err := DecodeIPAddress(r)
	if err != nil {
		return e, err
	}
	e.Addr = addr
	return e, nil
}
