package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// defaultTrustedProxies are the networks allowed to set forwarding headers
// when none are configured.
var defaultTrustedProxies = []string{
	"127.0.0.0/8",    // localhost
	"::1/128",        // localhost
	"10.0.0.0/8",     // private networks
	"172.16.0.0/12",  // private networks
	"192.168.0.0/16", // private networks
}

// ParseTrustedProxies parses CIDRs or bare IPs. An empty list yields the
// loopback and private ranges.
func ParseTrustedProxies(specs []string) ([]*net.IPNet, error) {
	if len(specs) == 0 {
		specs = defaultTrustedProxies
	}
	nets := make([]*net.IPNet, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if _, network, err := net.ParseCIDR(spec); err == nil {
			nets = append(nets, network)
			continue
		}
		ip := net.ParseIP(spec)
		if ip == nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", spec)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

// clientIPExtractor resolves the real client address, honouring forwarding
// headers only from trusted proxies.
type clientIPExtractor struct {
	trusted []*net.IPNet
}

func (c clientIPExtractor) isTrustedProxy(ip net.IP) bool {
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extract returns the client IP for r.
func (c clientIPExtractor) extract(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !c.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return directIP
}
