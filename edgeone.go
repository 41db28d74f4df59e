package trustedproxy

import (
	"context"
	"sync"
)

const (
	edgeOneIPURL = "https://api.edgeone.ai/ips"
)

var (
	edgeOneRangesInstance []string
	edgeOneRangesOnce     sync.Once
)

var edgeOneProvider = rangeProvider{
	name:  "EdgeOne",
	urls:  []string{edgeOneIPURL},
	once:  &edgeOneRangesOnce,
	cache: &edgeOneRangesInstance,
}

// EdgeOne does not publish a static snapshot of its blocks, so there is no
// embedded fallback.
var edgeOneDefaultCIDRs []string

func (g *Guard) edgeOneRanges(ctx context.Context) []string {
	return g.providerRanges(ctx, edgeOneProvider)
}
