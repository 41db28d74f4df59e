// Package trustedproxy provides net/http middleware that decides whether the
// immediate network peer of a request is a trusted proxy.
//
// The trusted set is assembled once at construction time from configured CIDR
// ranges, optional well-known local ranges and optional published CDN ranges.
// Every request is then checked against that set with the fail-closed matcher
// in the cidr package: the peer is trusted only if at least one range
// matches. Untrusted peers get their forwarding headers stripped so nothing
// they supplied can be mistaken for proxy-provided data downstream.
package trustedproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Static errors.
var (
	ErrInvalidTrustedCIDR = errors.New("invalid trusted CIDR")
	ErrPanic              = errors.New("panic")
)

// Config the middleware configuration.
type Config struct {
	LogLevel        string   `json:"logLevel,omitempty"`
	TrustedCIDRs    []string `json:"trustedCIDRs,omitempty"`
	TrustLocal      bool     `json:"trustLocal,omitempty"`
	TrustCloudflare bool     `json:"trustCloudflare,omitempty"`
	TrustEdgeOne    bool     `json:"trustEdgeOne,omitempty"`
	RejectUntrusted bool     `json:"rejectUntrusted,omitempty"`
}

// CreateConfig creates the default middleware configuration.
func CreateConfig() *Config {
	return &Config{
		LogLevel:        LogLevelInfo,
		TrustedCIDRs:    make([]string, 0),
		TrustLocal:      true,
		TrustCloudflare: false,
		TrustEdgeOne:    false,
		RejectUntrusted: false,
	}
}

// Guard marks, and optionally rejects, requests based on whether the
// immediate peer falls inside one of the configured trusted ranges.
type Guard struct {
	next         http.Handler
	conf         *Config
	logger       *PluginLogger
	name         string
	trustedCIDRs []string
}

// New creates a new Guard. The trusted range list is fixed here and never
// changes afterwards; configured CIDRs are validated fail-fast so a typo in
// the configuration surfaces at startup instead of silently trusting nobody.
func New(
	ctx context.Context,
	next http.Handler,
	config *Config,
	name string,
) (http.Handler, error) {
	guard := &Guard{
		next:   next,
		conf:   config,
		name:   name,
		logger: NewPluginLogger(ctx, name, config.LogLevel),
	}

	ranges := make([]string, 0)

	if config.TrustLocal {
		ranges = append(ranges, localCIDRs()...)
	}

	if config.TrustCloudflare {
		cloudflare := guard.cloudflareRanges(ctx)
		if len(cloudflare) == 0 {
			// Fallback to embedded defaults.
			cloudflare = cloudflareDefaultCIDRs
		}

		ranges = append(ranges, cloudflare...)
	}

	if config.TrustEdgeOne {
		edgeOne := guard.edgeOneRanges(ctx)
		if len(edgeOne) == 0 {
			// Fallback to embedded defaults if defined.
			edgeOne = edgeOneDefaultCIDRs
		}

		ranges = append(ranges, edgeOne...)
	}

	for _, r := range config.TrustedCIDRs {
		if !validCIDR(r) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTrustedCIDR, r)
		}

		ranges = append(ranges, r)
	}

	guard.trustedCIDRs = ranges

	return guard, nil
}

func (g *Guard) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	defer g.handlePanic(rw, req)

	ctx := req.Context()
	peer := peerAddr(req)

	trusted := g.isTrustedPeer(ctx, peer)
	g.logger.DebugContext(
		ctx,
		"Peer trust decided",
		slog.String("peer", peer),
		slog.Bool("is_trusted", trusted),
	)

	if trusted {
		req.Header.Set(XIsTrusted, "yes")
		g.next.ServeHTTP(rw, req)

		return
	}

	for _, header := range forwardingHeaders {
		req.Header.Del(header)
	}

	req.Header.Set(XIsTrusted, "no")

	if g.conf.RejectUntrusted {
		g.logger.InfoContext(ctx, "Rejecting untrusted peer", slog.String("peer", peer))
		http.Error(rw, "forbidden", http.StatusForbidden)

		return
	}

	g.next.ServeHTTP(rw, req)
}

func (g *Guard) handlePanic(rw http.ResponseWriter, req *http.Request) {
	recovered := recover()
	if recovered == nil {
		return
	}

	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%w: %v", ErrPanic, recovered)
	}

	if errors.Is(err, http.ErrAbortHandler) {
		// Client aborts are the server's business.
		panic(recovered)
	}

	g.logger.ErrorContext(req.Context(), "Panic recovered", ErrorAttr(err))
	http.Error(rw, "internal server error", http.StatusInternalServerError)
}
