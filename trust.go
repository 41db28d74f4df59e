package trustedproxy

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hkaya/trustedproxy/cidr"
)

// isTrustedPeer walks the configured ranges with the fail-closed matcher.
// First match wins; an empty list trusts nobody.
func (g *Guard) isTrustedPeer(ctx context.Context, peer string) bool {
	for _, r := range g.trustedCIDRs {
		if cidr.Matches(peer, r) {
			return true
		}
	}

	g.logger.DebugContext(ctx, "Peer is not trusted", slog.String("peer", peer))

	return false
}

// peerAddr extracts the bare address text from RemoteAddr. Some servers hand
// the address through without a port, so a failed split falls back to the
// raw value. Whatever comes out is fed to the fail-closed matcher, so
// garbage is simply never trusted.
func peerAddr(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}

	return host
}

// validCIDR reports whether s is a well-formed range. A well-formed CIDR's
// own base address always matches it, so the matcher doubles as the
// validator without needing a separate error channel.
func validCIDR(s string) bool {
	base, _, _ := strings.Cut(s, "/")

	return cidr.Matches(base, s)
}
