package ftp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// parseNumbers parses a comma separated list of decimal bytes
func parseNumbers(s string) ([]byte, error) {
	fields := strings.Split(s, ",")
	out := make([]byte, len(fields))
	for i, field := range fields {
		n, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(n)
	}
	return out, nil
}

// parsePASV parses the h1,h2,h3,h4,p1,p2 body of a 227 reply
func parsePASV(body string) (*net.TCPAddr, error) {
	b, err := parseNumbers(body)
	if err != nil || len(b) != 6 {
		return nil, protocolErrorf("bad PASV address %q", body)
	}
	return &net.TCPAddr{
		IP:   net.IPv4(b[0], b[1], b[2], b[3]),
		Port: int(b[4])<<8 | int(b[5]),
	}, nil
}

// formatPASV encodes addr as a PASV/PORT argument
func formatPASV(addr *net.TCPAddr) string {
	ip := addr.IP.To4()
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], addr.Port>>8, addr.Port&0xff)
}

// parseLPSV parses the af,hal,h1..,pal,p1,p2 body of a 228 reply.
//
// af and the lengths must match the family: 4 with 4 address bytes or
// 6 with 16, each with 2 port bytes.
func parseLPSV(body string, ipv6 bool) (*net.TCPAddr, error) {
	b, err := parseNumbers(body)
	if err != nil || len(b) < 2 {
		return nil, protocolErrorf("bad LPSV address %q", body)
	}
	af, hal := b[0], int(b[1])
	wantAF, wantHAL := byte(4), 4
	if ipv6 {
		wantAF, wantHAL = 6, 16
	}
	if af != wantAF || hal != wantHAL || len(b) != 2+hal+1+2 || b[2+hal] != 2 {
		return nil, protocolErrorf("bad LPSV address %q", body)
	}
	ip := make(net.IP, hal)
	copy(ip, b[2:2+hal])
	p := b[3+hal:]
	return &net.TCPAddr{IP: ip, Port: int(p[0])<<8 | int(p[1])}, nil
}

// formatLPRT encodes addr as an LPRT argument
func formatLPRT(addr *net.TCPAddr) string {
	ip, af := addr.IP.To4(), 4
	if ip == nil {
		ip, af = addr.IP.To16(), 6
	}
	parts := []string{strconv.Itoa(af), strconv.Itoa(len(ip))}
	for _, c := range ip {
		parts = append(parts, strconv.Itoa(int(c)))
	}
	parts = append(parts, "2", strconv.Itoa(addr.Port>>8), strconv.Itoa(addr.Port&0xff))
	return strings.Join(parts, ",")
}

// parseEPSV parses the <d><d><d>port<d> body of a 229 reply.  The
// four delimiters must be the same character.
func parseEPSV(body string) (int, error) {
	if len(body) < 5 {
		return 0, protocolErrorf("bad EPSV reply %q", body)
	}
	delim := body[0]
	if delim < 33 || delim > 126 || body[1] != delim || body[2] != delim || body[len(body)-1] != delim {
		return 0, protocolErrorf("bad EPSV delimiters in %q", body)
	}
	port, err := strconv.ParseUint(body[3:len(body)-1], 10, 16)
	if err != nil || port == 0 {
		return 0, protocolErrorf("bad EPSV port in %q", body)
	}
	return int(port), nil
}

// formatEPRT encodes addr as an EPRT argument
func formatEPRT(addr *net.TCPAddr) string {
	af := 1
	if addr.IP.To4() == nil {
		af = 2
	}
	ip := addr.IP.String()
	if af == 1 {
		ip = addr.IP.To4().String()
	}
	return fmt.Sprintf("|%d|%s|%d|", af, ip, addr.Port)
}
