package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// forwardingHeaders are consulted, in order, after X-Forwarded-For.
var forwardingHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// getClientIP returns the visitor's address as seen by the outermost proxy.
// Private and loopback hops are skipped; the socket address is the last
// resort and is returned even when private so local setups still work.
func getClientIP(c *fiber.Ctx) string {
	if ip := selectPreferredIP(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
		return ip
	}

	for _, header := range forwardingHeaders {
		if value := c.Get(header); value != "" {
			if ip := selectPreferredIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := selectPreferredIP(parseForwardedHeader(forwarded)); ip != "" {
			return ip
		}
	}

	if ip, addr := normalizeIP(c.Context().RemoteAddr().String()); ip != "" && !addr.IsUnspecified() {
		return ip
	}
	return c.IP()
}

// isPrivateIP covers RFC 1918, RFC 4193, loopback and link-local ranges.
func isPrivateIP(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

func selectPreferredIP(values []string) string {
	var ipv6Fallback string

	for _, raw := range values {
		clean, addr := normalizeIP(raw)
		if clean == "" || isPrivateIP(addr) {
			continue
		}

		if addr.Is4() {
			return clean
		}

		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}

	return ipv6Fallback
}

// normalizeIP extracts an address from the many shapes proxies produce:
// quoted, bracketed, with a port or with an IPv6 zone.
func normalizeIP(raw string) (string, netip.Addr) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return "", netip.Addr{}
	}

	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr().Unmap()
		return addr.String(), addr
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		addr = addr.Unmap()
		return addr.String(), addr
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return normalizeIP(host)
	}

	return "", netip.Addr{}
}

func parseForwardedHeader(header string) []string {
	var candidates []string

	for entry := range strings.SplitSeq(header, ",") {
		for part := range strings.SplitSeq(entry, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				candidates = append(candidates, part[len("for="):])
			}
		}
	}

	return candidates
}
